package studio

import "context"

// StagingArea holds, per reference category, the files a user intends
// to submit with the next generation request, and tracks their
// asynchronous analysis.
//
// The three buckets are disjoint; a file's bucket is fixed at insertion
// (no cross-bucket move, only remove and reinsert). Analysis runs per
// file, keyed by ID: completions may land in any order and one file's
// failure never affects its siblings. A completion arriving after its
// file was removed is silently discarded.
type StagingArea interface {
	// AddFiles inserts files into a bucket with loading status and
	// freshly minted preview handles, returning the new entries
	// immediately. Analysis is dispatched asynchronously per file.
	AddFiles(ctx context.Context, category RefCategory, files []FileData) []*StagedFile

	// UpdateFile merges patch into the matching entry. No-op if the ID
	// is not present in that category.
	UpdateFile(category RefCategory, id string, patch StagedFilePatch)

	// RemoveFile removes the entry and releases its preview handle.
	RemoveFile(category RefCategory, id string)

	// ClearCategory removes all entries in the bucket, releasing their
	// preview handles.
	ClearCategory(category RefCategory)

	// SetActiveCategory selects the bucket new drops land in. Pure
	// state, no side effects on other categories.
	SetActiveCategory(category RefCategory)

	// ActiveCategory returns the currently selected bucket.
	ActiveCategory() RefCategory

	// Files returns the bucket's entries in insertion order.
	Files(category RefCategory) []*StagedFile

	// Teardown clears every bucket and releases every preview handle.
	Teardown()
}
