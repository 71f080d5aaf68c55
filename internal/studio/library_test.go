package studio_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"studio-go/internal/codec"
	"studio-go/internal/studio"
	"studio-go/internal/testutil"
)

func newTestLibrary(t *testing.T) (*studio.Library, studio.Store, *codec.Codec) {
	t.Helper()
	st := testutil.NewTestStore(t)
	cdc := codec.New()
	lib := studio.NewLibrary(st, cdc, studio.NopLogger{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), studio.DefaultHistoryCap)
	return lib, st, cdc
}

func put(t *testing.T, st studio.Store, r *studio.AssetRecord) {
	t.Helper()
	if err := st.Put(r); err != nil {
		t.Fatal(err)
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestAssetsProjection(t *testing.T) {
	lib, st, _ := newTestLibrary(t)

	put(t, st, &studio.AssetRecord{
		ID:         "up1",
		URL:        "mem://stale-handle",
		Base64:     b64("up1-bytes"),
		Timestamp:  2,
		Source:     studio.SourceUpload,
		UploadType: studio.UploadSubject,
	})
	put(t, st, &studio.AssetRecord{
		ID:        "gen1",
		URL:       "https://img.example/gen1.png",
		Prompt:    "a castle",
		Timestamp: 1,
		Source:    studio.SourceGenerated,
	})

	assets, err := lib.Assets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(assets))
	}

	up := assets[0]
	if up.ID != "up1" {
		t.Fatalf("newest-first ordering broken: first asset is %s", up.ID)
	}
	if up.Type != studio.LibraryUpload {
		t.Errorf("upload record projected as %q", up.Type)
	}
	// The display URL prefers a reconstructed data URL over the stored
	// URL, which may be a dead handle from a previous session.
	if !strings.HasPrefix(up.URL, "data:image/png;base64,") {
		t.Errorf("upload URL = %q, want a data URL", up.URL)
	}
	// Category ignores the record's upload type entirely.
	if up.Category != studio.LibraryUncategorized {
		t.Errorf("category = %q, want uncategorized", up.Category)
	}

	gen := assets[1]
	if gen.Type != studio.LibraryHistory {
		t.Errorf("generated record projected as %q", gen.Type)
	}
	if gen.URL != "https://img.example/gen1.png" {
		t.Errorf("generated URL = %q, want the stored URL", gen.URL)
	}
	if gen.Prompt != "a castle" {
		t.Errorf("prompt = %q", gen.Prompt)
	}
}

func TestIngestSessionAssetShadowsVaultCopy(t *testing.T) {
	lib, st, _ := newTestLibrary(t)

	archive := func(f studio.FileData, ut studio.UploadType) (*studio.AssetRecord, error) {
		r := &studio.AssetRecord{
			ID:         "ing1",
			URL:        "mem://h",
			Base64:     b64(string(f.Data)),
			Timestamp:  5,
			Source:     studio.SourceUpload,
			UploadType: ut,
		}
		return r, st.Put(r)
	}

	added := lib.Ingest(context.Background(), []studio.FileData{
		{Name: "pasted.png", MIME: "image/png", Data: []byte("pasted-bytes")},
	}, studio.LibrarySubject, archive)

	if len(added) != 1 {
		t.Fatalf("ingested %d assets, want 1", len(added))
	}
	if added[0].Category != studio.LibrarySubject {
		t.Errorf("session category = %q, want subject", added[0].Category)
	}
	if added[0].File == nil {
		t.Error("session asset lost its attached file")
	}

	// The merged view must not show the vault copy a second time.
	assets, err := lib.Assets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 {
		t.Fatalf("merged view has %d assets, want 1", len(assets))
	}
	if assets[0].Category != studio.LibrarySubject {
		t.Errorf("session copy did not shadow the vault projection")
	}
}

func TestIngestUploadTypeFromFilter(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	var gotTypes []studio.UploadType
	archive := func(f studio.FileData, ut studio.UploadType) (*studio.AssetRecord, error) {
		gotTypes = append(gotTypes, ut)
		return &studio.AssetRecord{ID: f.Name, URL: "u", Timestamp: 1}, nil
	}

	file := studio.FileData{Name: "f1", MIME: "image/png", Data: []byte("x")}
	lib.Ingest(context.Background(), []studio.FileData{file}, studio.LibraryStyle, archive)
	lib.Ingest(context.Background(), []studio.FileData{file}, studio.LibraryUncategorized, archive)
	lib.Ingest(context.Background(), []studio.FileData{file}, "", archive)

	want := []studio.UploadType{studio.UploadStyle, "", ""}
	for i, ut := range want {
		if gotTypes[i] != ut {
			t.Errorf("ingest %d: uploadType = %q, want %q", i, gotTypes[i], ut)
		}
	}
}

func TestIngestIsolatesArchiveFailures(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	archive := func(f studio.FileData, ut studio.UploadType) (*studio.AssetRecord, error) {
		if f.Name == "bad" {
			return nil, errors.New("disk full")
		}
		return &studio.AssetRecord{ID: f.Name, URL: "u", Timestamp: 1}, nil
	}

	added := lib.Ingest(context.Background(), []studio.FileData{
		{Name: "ok1", MIME: "image/png", Data: []byte("a")},
		{Name: "bad", MIME: "image/png", Data: []byte("b")},
		{Name: "ok2", MIME: "image/png", Data: []byte("c")},
	}, "", archive)

	if len(added) != 2 {
		t.Fatalf("ingested %d assets, want 2 survivors", len(added))
	}
	if added[0].ID != "ok1" || added[1].ID != "ok2" {
		t.Errorf("survivors = %s, %s", added[0].ID, added[1].ID)
	}
}

func TestAssetToFileTierOrder(t *testing.T) {
	lib, _, _ := newTestLibrary(t)
	ctx := context.Background()

	attached := studio.FileData{Name: "mem.png", MIME: "image/png", Data: []byte("mem-bytes")}

	// Attached file wins even when base64 is present.
	a := &studio.LibraryAsset{ID: "a1", Base64: b64("b64-bytes"), File: &attached}
	f, err := lib.AssetToFile(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Data) != "mem-bytes" {
		t.Errorf("attached tier not preferred: got %q", f.Data)
	}

	// Base64 wins over the URL when no file is attached.
	a = &studio.LibraryAsset{ID: "a2", URL: "https://unreachable.invalid/x.png", Base64: b64("b64-bytes")}
	f, err = lib.AssetToFile(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Data) != "b64-bytes" {
		t.Errorf("base64 tier not preferred: got %q", f.Data)
	}
	if !strings.HasPrefix(f.Name, "asset_a2") {
		t.Errorf("derived filename = %q", f.Name)
	}

	// A data URL in the URL field decodes through the fetch tier.
	a = &studio.LibraryAsset{ID: "a3", URL: "data:image/png;base64," + b64("url-bytes")}
	f, err = lib.AssetToFile(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Data) != "url-bytes" {
		t.Errorf("fetch tier got %q", f.Data)
	}
}

func TestAssetToFileMalformedBase64Fails(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	// The base64 tier applies, so its failure must fail the conversion
	// rather than falling through to the URL.
	a := &studio.LibraryAsset{ID: "a1", URL: "data:image/png;base64," + b64("good"), Base64: "!!!not-base64!!!"}
	_, err := lib.AssetToFile(context.Background(), a)
	if !errors.Is(err, studio.ErrConversion) {
		t.Errorf("err = %v, want ErrConversion", err)
	}
}

func TestConfirmSelection(t *testing.T) {
	lib, st, _ := newTestLibrary(t)

	put(t, st, &studio.AssetRecord{ID: "s1", URL: "u1", Base64: b64("one"), Timestamp: 3})
	put(t, st, &studio.AssetRecord{ID: "s2", URL: "u2", Base64: b64("two"), Timestamp: 2})
	put(t, st, &studio.AssetRecord{ID: "s3", URL: "u3", Base64: b64("three"), Timestamp: 1})

	// Selection order is preserved regardless of timestamp order.
	files, err := lib.ConfirmSelection(context.Background(), []string{"s3", "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if string(files[0].Data) != "three" || string(files[1].Data) != "one" {
		t.Errorf("selection order not preserved: %q, %q", files[0].Data, files[1].Data)
	}
}

func TestConfirmSelectionAllOrNothing(t *testing.T) {
	lib, st, _ := newTestLibrary(t)

	put(t, st, &studio.AssetRecord{ID: "good", URL: "u1", Base64: b64("fine"), Timestamp: 2})

	files, err := lib.ConfirmSelection(context.Background(), []string{"good", "missing"})
	if err == nil {
		t.Fatal("expected error for missing asset")
	}
	if files != nil {
		t.Errorf("partial result returned: %v", files)
	}
}

func TestFilter(t *testing.T) {
	assets := []*studio.LibraryAsset{
		{ID: "a", Category: studio.LibrarySubject},
		{ID: "b", Category: studio.LibraryUncategorized},
		{ID: "c", Category: studio.LibrarySubject},
	}

	if got := studio.Filter(assets, ""); len(got) != 3 {
		t.Errorf("empty filter returned %d assets, want all 3", len(got))
	}
	if got := studio.Filter(assets, studio.LibraryUncategorized); len(got) != 3 {
		t.Errorf("uncategorized filter returned %d assets, want all 3", len(got))
	}

	got := studio.Filter(assets, studio.LibrarySubject)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("subject filter = %v", got)
	}
	if got := studio.Filter(assets, studio.LibraryScene); len(got) != 0 {
		t.Errorf("scene filter returned %d assets, want 0", len(got))
	}
}

func TestAssetsHonorsConfiguredCap(t *testing.T) {
	st := testutil.NewTestStore(t)
	lib := studio.NewLibrary(st, codec.New(), studio.NopLogger{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), 2)

	for i := 1; i <= 3; i++ {
		put(t, st, &studio.AssetRecord{ID: fmt.Sprintf("r%d", i), URL: "u", Timestamp: int64(i)})
	}

	assets, err := lib.Assets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want the 2 newest", len(assets))
	}
	if assets[0].ID != "r3" || assets[1].ID != "r2" {
		t.Errorf("assets = [%s %s], want [r3 r2]", assets[0].ID, assets[1].ID)
	}
}

func TestAssetLookup(t *testing.T) {
	lib, st, _ := newTestLibrary(t)
	put(t, st, &studio.AssetRecord{ID: "x", URL: "u", Timestamp: 1})

	if _, ok := lib.Asset(context.Background(), "x"); !ok {
		t.Error("known asset not found")
	}
	if _, ok := lib.Asset(context.Background(), "y"); ok {
		t.Error("unknown asset reported found")
	}
}
