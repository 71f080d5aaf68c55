package studio

// Store is the sole durable store for AssetRecords. Implementations own
// the connection lifecycle: a closed underlying handle is transparently
// reopened, never surfaced to callers as a "disconnected" error.
//
// Every operation either fully succeeds or fully fails. Put and Delete
// are idempotent by ID, Clear is idempotent, GetAll is read-only, so
// any of them may be safely retried after a failure.
type Store interface {
	// Put upserts a record by ID, normalizing first: a missing Base64
	// is derived from a data-URL URL, a missing Prompt becomes the
	// placeholder, a missing Source defaults to generated.
	Put(record *AssetRecord) error

	// GetAll returns up to limit records ordered by Timestamp
	// descending (newest first), never more than limit.
	GetAll(limit int) ([]*AssetRecord, error)

	// Delete removes the record if present. Deleting a non-existent ID
	// is not an error.
	Delete(id string) error

	// Clear removes all records unconditionally.
	Clear() error

	// SnapshotTo writes a consistent copy of the store to destPath,
	// for backup upload.
	SnapshotTo(destPath string) error

	// Close closes the store.
	Close() error
}
