package studio

import (
	"fmt"
	"sync"
)

// History reconciles the vault's durable contents with the in-memory
// projection consumed by UI-adjacent callers, plus the two views keyed
// off it: the currently displayed generation results and the currently
// selected item.
type History struct {
	store  Store
	logger Logger
	cap    int

	mu       sync.Mutex
	seq      uint64 // last refresh initiated
	applied  uint64 // refresh whose projection is installed
	entries  []*AssetRecord
	results  []*ImageResult
	selected string
}

// DefaultHistoryCap bounds the projection when no cap is configured.
const DefaultHistoryCap = 100

// NewHistory creates a History over the given store.
func NewHistory(store Store, logger Logger, cap int) *History {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &History{store: store, logger: logger, cap: cap}
}

// Refresh replaces the projection wholesale from the vault. Safe to
// call repeatedly and concurrently: a monotonic sequence taken at
// initiation guards installation, so the projection always reflects the
// most recently initiated refresh that completed, never an interleaving
// of two.
func (h *History) Refresh() error {
	h.mu.Lock()
	h.seq++
	my := h.seq
	h.mu.Unlock()

	records, err := h.store.GetAll(h.cap)
	if err != nil {
		return fmt.Errorf("refreshing history: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if my < h.applied {
		// A refresh initiated after this one already landed.
		h.logger.Debug("stale history refresh discarded", "seq", my)
		return nil
	}
	h.entries = records
	h.applied = my
	return nil
}

// Entries returns the current projection, newest first.
func (h *History) Entries() []*AssetRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*AssetRecord, len(h.entries))
	copy(out, h.entries)
	return out
}

// Delete removes the record from the vault, then fans the invalidation
// out across the projection, the displayed results and the selection,
// all keyed by the same ID.
func (h *History) Delete(id string) error {
	if err := h.store.Delete(id); err != nil {
		return fmt.Errorf("deleting history record: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = removeByID(h.entries, id, func(r *AssetRecord) string { return r.ID })
	h.results = removeByID(h.results, id, func(r *ImageResult) string { return r.ID })
	if h.selected == id {
		h.selected = ""
	}
	return nil
}

// ClearAll wipes the vault and resets the projection. confirm gates the
// destructive step; when it returns false nothing happens and cleared
// is false.
func (h *History) ClearAll(confirm func() bool) (cleared bool, err error) {
	if confirm == nil || !confirm() {
		return false, nil
	}
	if err := h.store.Clear(); err != nil {
		return false, fmt.Errorf("clearing history: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.results = nil
	h.selected = ""
	return true, nil
}

// SetResults replaces the currently displayed generation results.
func (h *History) SetResults(results []*ImageResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = results
}

// Results returns the currently displayed generation results.
func (h *History) Results() []*ImageResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*ImageResult, len(h.results))
	copy(out, h.results)
	return out
}

// Select marks an item as the currently selected one; empty deselects.
func (h *History) Select(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = id
}

// Selected returns the currently selected item's ID, empty if none.
func (h *History) Selected() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selected
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if key(it) != id {
			out = append(out, it)
		}
	}
	return out
}
