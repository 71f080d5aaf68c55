package studio

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportFilename returns the conventional name for an interchange
// export created at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("vault_backup_%s.json", t.UTC().Format("2006-01-02"))
}

// Export writes the vault's full ordered record set to w as the
// interchange format: a JSON array of AssetRecord objects.
func (s *StudioService) Export(w io.Writer) error {
	records, err := s.store.GetAll(DefaultHistoryCap)
	if err != nil {
		return fmt.Errorf("exporting vault: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// Import reads an interchange file from r and writes its records into
// the vault. The top-level value must be a JSON array — anything else
// fails the whole import without touching the vault. Elements missing
// a non-empty id or url are silently skipped; the returned count is the
// number of records actually written.
func (s *StudioService) Import(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("reading import: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImportFormat, err)
	}

	count := 0
	for i, raw := range elements {
		var rec AssetRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Debug("skipping malformed import element", "index", i)
			continue
		}
		if rec.ID == "" || rec.URL == "" {
			s.logger.Debug("skipping import element without id/url", "index", i)
			continue
		}
		if err := s.store.Put(&rec); err != nil {
			s.logger.Error("import write failed", "id", rec.ID, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		if err := s.history.Refresh(); err != nil {
			s.logger.Warn("history refresh after import failed", "error", err)
		}
		s.notifier.Notify("history_updated")
	}

	s.logger.Info("import complete", "restored", count, "total", len(elements))
	return count, nil
}
