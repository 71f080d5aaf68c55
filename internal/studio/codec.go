package studio

import "context"

// FileData is an in-memory binary file: name, mime type, raw bytes.
type FileData struct {
	Name string
	MIME string
	Data []byte
}

// Codec converts between raw file bytes, portable base64 text, and
// transient display handles.
type Codec interface {
	// Encode returns the file as a data URL ("data:<mime>;base64,...").
	Encode(f FileData) (string, error)

	// Strip removes a data-URL prefix if present, else returns the
	// input unchanged. Idempotent.
	Strip(s string) string

	// Decode reconstructs a file from raw base64 plus an optional mime
	// hint (a generic image type when empty). Malformed base64 yields
	// an error wrapping ErrDecode.
	Decode(base64, mimeHint string) (FileData, error)

	// NewHandle mints a revocable, process-local display handle for f.
	// The caller owns the handle and must release it exactly once.
	NewHandle(f FileData) string

	// Resolve returns the file behind a live handle.
	Resolve(handle string) (FileData, bool)

	// Release revokes a handle. Releasing an unknown or already
	// released handle is a no-op.
	Release(handle string)

	// ReleaseAll revokes every live handle.
	ReleaseAll()

	// Fetch materializes the bytes behind a URL: data URLs decode
	// locally, live handles resolve from the registry, anything else
	// is dereferenced over HTTP.
	Fetch(ctx context.Context, url string) (FileData, error)

	// Probe extracts image dimensions and format from a file.
	Probe(f FileData) (AssetMeta, error)
}
