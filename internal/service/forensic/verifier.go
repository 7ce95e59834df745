// Package forensic inspects leaked or suspect files and recovers the
// identity trail embedded at delivery time.
package forensic

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"docvault/internal/watermark"
)

// Kind classifies the inspected file.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

// Result is the verification verdict. Found reports whether any
// watermark was recovered; the remaining fields are filled from
// whatever the artifact carried.
type Result struct {
	Kind       Kind
	Found      bool
	TraceToken string
	UserID     string
	Identity   string // "<name>_<contact>" as stamped at delivery
	Timestamp  time.Time
}

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// Verifier recovers delivery watermarks from artifacts.
type Verifier struct {
	blind  watermark.BlindMarker
	logger *slog.Logger
}

// NewVerifier creates a verifier. blind may be nil, in which case image
// files cannot be checked.
func NewVerifier(blind watermark.BlindMarker, logger *slog.Logger) *Verifier {
	return &Verifier{blind: blind, logger: logger}
}

// Verify classifies the file by magic bytes and extracts the embedded
// trace fields. A readable file without a watermark is a clean negative,
// not an error.
func (v *Verifier) Verify(ctx context.Context, data []byte) (*Result, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return v.verifyPDF(data)
	case bytes.HasPrefix(data, pngMagic) || bytes.HasPrefix(data, jpegMagic):
		return v.verifyImage(data)
	default:
		return &Result{Kind: KindUnknown}, nil
	}
}

func (v *Verifier) verifyPDF(data []byte) (*Result, error) {
	props, err := watermark.ReadProperties(data)
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: KindPDF}
	token, ok := props[watermark.PropTraceID]
	if !ok || token == "" {
		return res, nil
	}

	res.Found = true
	res.TraceToken = token
	res.UserID = props[watermark.PropUser]
	res.Identity = props[watermark.PropUserInfo]

	if raw := props[watermark.PropDownloadTime]; raw != "" {
		ts, err := time.Parse(watermark.TimestampLayout, raw)
		if err != nil {
			v.logger.Warn("malformed delivery timestamp in artifact", "value", raw)
		} else {
			res.Timestamp = ts
		}
	}

	return res, nil
}

func (v *Verifier) verifyImage(data []byte) (*Result, error) {
	res := &Result{Kind: KindImage}
	if v.blind == nil {
		return res, nil
	}

	found, payload, err := v.blind.Detect(data)
	if err != nil {
		return nil, err
	}
	if found {
		res.Found = true
		res.TraceToken = payload
	}
	return res, nil
}
