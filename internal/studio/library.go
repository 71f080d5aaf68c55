package studio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Library merges vault-derived history with session-local
// freshly-added assets into one filterable view, and converts any asset
// in that view back into a binary file on demand.
type Library struct {
	store  Store
	codec  Codec
	logger Logger
	clock  Clock
	idgen  IDGenerator
	cap    int

	mu      sync.Mutex
	session []*LibraryAsset
}

// NewLibrary creates a Library over the given store and codec. cap
// bounds the vault history folded into the merged view.
func NewLibrary(store Store, codec Codec, logger Logger, clock Clock, idgen IDGenerator, cap int) *Library {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &Library{store: store, codec: codec, logger: logger, clock: clock, idgen: idgen, cap: cap}
}

// projectRecord turns a durable record into a library asset.
//
// Two deliberate projection choices: the display URL prefers a data URL
// reconstructed from Base64 over the stored URL, which may be a stale
// transient handle from a prior session; and Category is always
// initialized to uncategorized regardless of the record's UploadType —
// category filtering in this view is a presentation-level concern, and
// downstream filtering is written against that behavior.
func projectRecord(r *AssetRecord) *LibraryAsset {
	url := r.URL
	if r.Base64 != "" {
		url = "data:image/png;base64," + r.Base64
	}
	t := LibraryHistory
	if r.Source == SourceUpload {
		t = LibraryUpload
	}
	return &LibraryAsset{
		ID:        r.ID,
		URL:       url,
		Base64:    r.Base64,
		Type:      t,
		Category:  LibraryUncategorized,
		Timestamp: r.Timestamp,
		Prompt:    r.Prompt,
		Source:    r.Source,
	}
}

// Assets returns the merged, de-duplicated view: session assets plus
// vault history, newest first. A session asset that has since been
// archived shadows its vault copy by ID.
func (l *Library) Assets(ctx context.Context) ([]*LibraryAsset, error) {
	records, err := l.store.GetAll(l.cap)
	if err != nil {
		return nil, fmt.Errorf("loading library history: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(l.session))
	out := make([]*LibraryAsset, 0, len(l.session)+len(records))
	for _, a := range l.session {
		seen[a.ID] = true
		out = append(out, a)
	}
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		out = append(out, projectRecord(r))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// Asset returns a single asset from the merged view by ID.
func (l *Library) Asset(ctx context.Context, id string) (*LibraryAsset, bool) {
	assets, err := l.Assets(ctx)
	if err != nil {
		l.logger.Error("library lookup failed", "id", id, "error", err)
		return nil, false
	}
	for _, a := range assets {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// conversionStrategy is one tier of the asset-to-file fallback chain.
type conversionStrategy struct {
	name  string
	apply func(ctx context.Context, a *LibraryAsset) (FileData, bool, error)
}

// strategies returns the ordered conversion tiers: attached in-memory
// file, base64 decode, URL fetch. Each tier is strictly more expensive
// and strictly less reliable than the last; the order is fixed.
func (l *Library) strategies() []conversionStrategy {
	return []conversionStrategy{
		{
			name: "attached",
			apply: func(_ context.Context, a *LibraryAsset) (FileData, bool, error) {
				if a.File == nil {
					return FileData{}, false, nil
				}
				return *a.File, true, nil
			},
		},
		{
			name: "base64",
			apply: func(_ context.Context, a *LibraryAsset) (FileData, bool, error) {
				if a.Base64 == "" {
					return FileData{}, false, nil
				}
				mime := ""
				if a.Meta != nil && a.Meta.Format != "" {
					mime = "image/" + a.Meta.Format
				}
				f, err := l.codec.Decode(a.Base64, mime)
				if err != nil {
					return FileData{}, false, fmt.Errorf("%w: %v", ErrConversion, err)
				}
				f.Name = assetFilename(a.ID, f.MIME)
				return f, true, nil
			},
		},
		{
			name: "fetch",
			apply: func(ctx context.Context, a *LibraryAsset) (FileData, bool, error) {
				f, err := l.codec.Fetch(ctx, a.URL)
				if err != nil {
					return FileData{}, false, fmt.Errorf("%w: %v", ErrConversion, err)
				}
				f.Name = assetFilename(a.ID, f.MIME)
				return f, true, nil
			},
		},
	}
}

// AssetToFile materializes a library asset into a binary file through
// the three-tier fallback. A tier that does not apply is skipped; a
// tier that applies and fails fails the conversion.
func (l *Library) AssetToFile(ctx context.Context, a *LibraryAsset) (FileData, error) {
	for _, tier := range l.strategies() {
		f, ok, err := tier.apply(ctx, a)
		if err != nil {
			return FileData{}, err
		}
		if ok {
			return f, nil
		}
	}
	return FileData{}, fmt.Errorf("%w: asset %s has no recoverable payload", ErrConversion, a.ID)
}

// ConfirmSelection converts every selected asset and returns the files
// in selection order. If any single conversion fails the whole call
// fails and no partial list is returned — the caller needs a complete
// set for the pending action.
func (l *Library) ConfirmSelection(ctx context.Context, ids []string) ([]FileData, error) {
	files := make([]FileData, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			asset, ok := l.Asset(gctx, id)
			if !ok {
				return fmt.Errorf("%w: asset not found: %s", ErrConversion, id)
			}
			f, err := l.AssetToFile(gctx, asset)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Ingest handles a batch of pasted or dropped files while the library
// is open: each is archived into the vault as an upload (with the
// active filter as its upload type) and added to the session list so it
// is visible without a vault round-trip. Failure of one file's archival
// does not block the rest.
//
// archive is the auto-archive entry point (StudioService.ArchiveUpload);
// it is injected so the aggregator itself never writes to the store.
func (l *Library) Ingest(ctx context.Context, files []FileData, activeFilter LibraryCategory, archive func(FileData, UploadType) (*AssetRecord, error)) []*LibraryAsset {
	uploadType := UploadType("")
	category := LibraryUncategorized
	if activeFilter != "" && activeFilter != LibraryUncategorized {
		category = activeFilter
		uploadType = UploadType(strings.ToUpper(string(activeFilter)))
	}

	var added []*LibraryAsset
	for _, f := range files {
		record, err := archive(f, uploadType)
		if err != nil {
			l.logger.Error("library ingest archive failed", "file", f.Name, "error", err)
			continue
		}

		asset := projectRecord(record)
		asset.Category = category
		asset.File = &f
		if meta, err := l.codec.Probe(f); err == nil {
			asset.Meta = &meta
		}

		l.mu.Lock()
		l.session = append([]*LibraryAsset{asset}, l.session...)
		l.mu.Unlock()
		added = append(added, asset)
	}
	return added
}

// Filter returns the assets whose category matches. The zero filter
// (or uncategorized) means "all".
func Filter(assets []*LibraryAsset, category LibraryCategory) []*LibraryAsset {
	if category == "" || category == LibraryUncategorized {
		return assets
	}
	var out []*LibraryAsset
	for _, a := range assets {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

func assetFilename(id, mime string) string {
	ext := "png"
	if i := strings.IndexByte(mime, '/'); i >= 0 && i+1 < len(mime) {
		ext = mime[i+1:]
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("asset_%s.%s", short, ext)
}
