package delivery

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"
)

// tracePrefix opens every trace token. Verification tooling greps for it.
const tracePrefix = "TRACE"

// Fingerprint hashes the source bytes and returns a compact hex digest.
// The digest binds a trace token to the exact content that was delivered.
func Fingerprint(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint content: %w", err)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]), nil
}

// TraceToken builds the per-delivery token embedded into the artifact
// and written to the audit trail. The shape is stable:
// TRACE_<userID>_<unixSeconds>_<fingerprint>.
func TraceToken(userID int64, at time.Time, fingerprint string) string {
	return fmt.Sprintf("%s_%d_%d_%s", tracePrefix, userID, at.Unix(), fingerprint)
}
