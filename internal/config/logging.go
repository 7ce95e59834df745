package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const logPrefix = "docvault-"

// OpenLogFile creates a fresh timestamped log file under dir and prunes
// the directory down to keep files. The caller owns the handle.
func OpenLogFile(dir string, keep int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := logPrefix + time.Now().Format("2006-01-02T15-04-05") + ".log"
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	if err := pruneLogs(dir, keep); err != nil {
		// Pruning is best effort, the fresh file is already usable.
		fmt.Fprintf(os.Stderr, "warning: prune old logs: %v\n", err)
	}

	return f, nil
}

// pruneLogs deletes the oldest log files once the directory holds more
// than keep of them. The timestamp in the name sorts chronologically.
func pruneLogs(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), logPrefix) && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)
	for len(names) > keep {
		if err := os.Remove(filepath.Join(dir, names[0])); err != nil {
			return fmt.Errorf("remove %s: %w", names[0], err)
		}
		names = names[1:]
	}

	return nil
}
