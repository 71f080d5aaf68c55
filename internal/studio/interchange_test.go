package studio_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"studio-go/internal/studio"
)

func TestExportFilename(t *testing.T) {
	at := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("AEST", 10*3600))
	// Filename uses the UTC date.
	if got := studio.ExportFilename(at); got != "vault_backup_2025-06-01.json" {
		t.Errorf("filename = %q", got)
	}
}

func TestExportIsOrderedJSONArray(t *testing.T) {
	f := newFixture(t)

	for i, id := range []string{"a", "b", "c"} {
		if err := f.store.Put(&studio.AssetRecord{ID: id, URL: "u" + id, Timestamp: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.svc.Export(&buf); err != nil {
		t.Fatal(err)
	}

	var got []studio.AssetRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("export is not a JSON array: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("exported %d records, want 3", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("export order = [%s %s %s], want newest first", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestExportEmptyVault(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	if err := f.svc.Export(&buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestImportRejectsNonArray(t *testing.T) {
	f := newFixture(t)

	for _, payload := range []string{
		`{"id":"a","url":"u"}`,
		`"just a string"`,
		`not json at all`,
	} {
		count, err := f.svc.Import(strings.NewReader(payload))
		if !errors.Is(err, studio.ErrImportFormat) {
			t.Errorf("payload %q: err = %v, want ErrImportFormat", payload, err)
		}
		if count != 0 {
			t.Errorf("payload %q: count = %d, want 0", payload, count)
		}
	}

	records, err := f.store.GetAll(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("vault touched by rejected import: %d records", len(records))
	}
}

func TestImportSkipsInvalidElements(t *testing.T) {
	f := newFixture(t)

	payload := `[
		{"id":"good1","url":"https://img.example/1.png","timestamp":10},
		{"id":"","url":"https://img.example/2.png"},
		{"url":"https://img.example/3.png"},
		{"id":"nourl"},
		42,
		{"id":"good2","url":"https://img.example/5.png","timestamp":5}
	]`

	count, err := f.svc.Import(strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	records, err := f.store.GetAll(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("vault has %d records, want 2", len(records))
	}
	if records[0].ID != "good1" || records[1].ID != "good2" {
		t.Errorf("vault = [%s %s]", records[0].ID, records[1].ID)
	}

	if got := f.svc.History().Entries(); len(got) != 2 {
		t.Errorf("history not refreshed after import: %d entries", len(got))
	}
	events := f.notifier.Events()
	if len(events) == 0 || events[len(events)-1] != "history_updated" {
		t.Errorf("no history_updated notification, events = %v", events)
	}
}

func TestImportEmptyArray(t *testing.T) {
	f := newFixture(t)

	count, err := f.svc.Import(strings.NewReader("[]"))
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if events := f.notifier.Events(); len(events) != 0 {
		t.Errorf("empty import notified: %v", events)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newFixture(t)
	seed := int64(99)
	if err := src.store.Put(&studio.AssetRecord{
		ID:          "r1",
		URL:         "https://img.example/r1.png",
		Base64:      "aGVsbG8=",
		Prompt:      "sunset",
		ModelID:     "m",
		AspectRatio: "16:9",
		Timestamp:   123,
		Source:      studio.SourceGenerated,
		Seed:        &seed,
	}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := src.svc.Export(&buf); err != nil {
		t.Fatal(err)
	}

	dst := newFixture(t)
	count, err := dst.svc.Import(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("restored %d records, want 1", count)
	}

	records, err := dst.store.GetAll(10)
	if err != nil {
		t.Fatal(err)
	}
	got := records[0]
	if got.Prompt != "sunset" || got.AspectRatio != "16:9" || got.Base64 != "aGVsbG8=" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Seed == nil || *got.Seed != 99 {
		t.Errorf("round trip lost seed: %v", got.Seed)
	}
}
