package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteReportFile writes the JSON report to path. A sibling "<path>.lock"
// file is held for the duration of the write so concurrent runs sharing a
// path never interleave their output.
func WriteReportFile(path string, r Report) error {
	if path == "" {
		return fmt.Errorf("report file path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
