package backup

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"studio-go/internal/studio"
)

// MemoryTarget is an in-memory implementation of the BackupTarget
// interface, useful for testing. Safe for concurrent use.
type MemoryTarget struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	versions  map[string]int64
}

func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{
		snapshots: make(map[string][]byte),
		versions:  make(map[string]int64),
	}
}

func (t *MemoryTarget) PutSnapshot(name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[name] = data
	t.versions[name] = version
	return nil
}

func (t *MemoryTarget) GetSnapshot(name string, w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	data, ok := t.snapshots[name]
	if !ok {
		return fmt.Errorf("snapshot not found: %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (t *MemoryTarget) SnapshotVersion(name string) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.versions[name], nil
}

func (t *MemoryTarget) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryTarget implements the BackupTarget interface
var _ studio.BackupTarget = (*MemoryTarget)(nil)
