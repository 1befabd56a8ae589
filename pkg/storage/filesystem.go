package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive keeps rendered report files on disk under a base directory so
// download links can be served without re-rendering.
type Archive struct {
	baseDir string
}

// NewArchive ensures the base directory exists and returns a handle.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		baseDir = "./reports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Save writes the rendered report under the base directory.
func (a *Archive) Save(filename string, data []byte) error {
	path, err := a.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

// Read returns the stored report bytes.
func (a *Archive) Read(filename string) ([]byte, error) {
	path, err := a.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	return data, nil
}

// Delete removes a stored report if present.
func (a *Archive) Delete(filename string) error {
	path, err := a.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete report file: %w", err)
	}
	return nil
}

// Sweep removes reports whose files are older than ttl and returns how
// many were deleted.
func (a *Archive) Sweep(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := 0
	err := filepath.WalkDir(a.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("sweep reports: %w", err)
	}
	return deleted, nil
}

// resolve joins filename onto the base directory, rejecting anything
// that would escape it.
func (a *Archive) resolve(filename string) (string, error) {
	clean := filepath.Clean(filename)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid report filename %q", filename)
	}
	return filepath.Join(a.baseDir, clean), nil
}
