package visual

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Screenshotter is anything that can produce a PNG of its current state
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Capture writes a screenshot of src to dest, creating parent directories.
// Engine failures and filesystem failures are both returned.
func Capture(ctx context.Context, src Screenshotter, dest string) error {
	data, err := src.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &IOError{Op: "create directory", Path: filepath.Dir(dest), Err: err}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: dest, Err: err}
	}
	return nil
}
