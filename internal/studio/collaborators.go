package studio

import (
	"context"
	"io"
)

// Analyzer extracts descriptive tags from a reference image. Failure is
// contained per staged file (status error), never propagated as an
// exception that aborts sibling files.
type Analyzer interface {
	// Analyze returns a comma-separated tag list for the image.
	// imageBase64 carries the raw payload without a data-URL prefix.
	Analyze(ctx context.Context, imageBase64 string, category RefCategory, mimeType string) (string, error)
}

// Generator produces images from a generation request. It may return
// fewer images than requested (partial success) or fail entirely.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]*ImageResult, error)
}

// ModelCatalog lists the generation engines the proxy offers.
// Best-effort: an empty result means "fall back to the static list",
// never a fatal condition.
type ModelCatalog interface {
	ListAvailableModels(ctx context.Context) ([]ModelDescriptor, error)
}

// Enhancer rewrites a user prompt into a richer generation prompt,
// optionally informed by staged references. On failure callers keep
// the original prompt.
type Enhancer interface {
	EnhancePrompt(ctx context.Context, prompt string, refs []ReferenceImage) (string, error)
}

// Notifier announces state changes other views should converge on,
// e.g. "history_updated" after an auto-archive.
type Notifier interface {
	Notify(event string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// BackupTarget stores versioned vault snapshots and interchange
// archives outside the local store.
type BackupTarget interface {
	// PutSnapshot stores a named snapshot. size is the number of bytes
	// that will be read from r; version is stored alongside for
	// consistency checks.
	PutSnapshot(name string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves a named snapshot and writes it to w.
	GetSnapshot(name string, w io.Writer) error

	// SnapshotVersion returns the stored version for a name, 0 if none.
	SnapshotVersion(name string) (int64, error)

	// ValidateSetup verifies the target is accessible and configured.
	ValidateSetup() error
}

// Encryptor wraps interchange exports with passphrase encryption.
type Encryptor interface {
	// Encrypt returns a WriteCloser that encrypts everything written
	// to it into dst. Close must be called to finalize.
	Encrypt(dst io.Writer, passphrase string) (io.WriteCloser, error)

	// Decrypt returns a reader of the plaintext behind src.
	Decrypt(src io.Reader, passphrase string) (io.Reader, error)
}
