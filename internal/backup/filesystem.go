// Package backup stores versioned vault snapshots on a filesystem, in
// S3, or in memory for tests.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"studio-go/internal/studio"
)

// FileSystemTarget keeps snapshots as files in a directory:
//
//	<root>/
//	  <name>.db       (snapshot payloads)
//	  <name>.version  (version markers)
type FileSystemTarget struct {
	root string
}

// NewFileSystemTarget creates a filesystem target rooted at the given path.
func NewFileSystemTarget(root string) (*FileSystemTarget, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &FileSystemTarget{root: root}, nil
}

// PutSnapshot stores a named snapshot along with its version marker.
func (t *FileSystemTarget) PutSnapshot(name string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(t.root, name+".db")
	if err := t.writeFile(destPath, r, size); err != nil {
		return err
	}

	versionPath := filepath.Join(t.root, name+".version")
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

// GetSnapshot retrieves a named snapshot and writes it to w.
func (t *FileSystemTarget) GetSnapshot(name string, w io.Writer) error {
	srcPath := filepath.Join(t.root, name+".db")

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s", name)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the version for a named snapshot. Returns 0
// if no version marker exists.
func (t *FileSystemTarget) SnapshotVersion(name string) (int64, error) {
	versionPath := filepath.Join(t.root, name+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the backup directory is accessible.
func (t *FileSystemTarget) ValidateSetup() error {
	info, err := os.Stat(t.root)
	if err != nil {
		return fmt.Errorf("backup root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backup root is not a directory: %s", t.root)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic
// write (temp file + rename).
func (t *FileSystemTarget) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemTarget implements the BackupTarget interface
var _ studio.BackupTarget = (*FileSystemTarget)(nil)
