package file

import (
	"fmt"
	"os"
	"path/filepath"

	"switchpac/internal/logger"
	"switchpac/internal/publishers"
)

// Publisher writes the script to params.path, replacing it atomically.
type Publisher struct{}

func (p *Publisher) Publish(script string, config map[string]interface{}) error {
	path := publishers.String(config, "path")
	if path == "" {
		return fmt.Errorf("file publisher requires path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".switchpac-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	logger.L().Debugf("File: wrote %d bytes to %s", len(script), path)
	return nil
}

func init() {
	publishers.Register("file", func() publishers.Publisher { return &Publisher{} })
}
