package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio-go/internal/codec"
	"studio-go/internal/staging"
	"studio-go/internal/studio"
	"studio-go/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *studio.StudioService) {
	t.Helper()

	store := testutil.NewTestStore(t)
	c := codec.New()
	analyzer := testutil.NewStubAnalyzer()
	idgen := testutil.NewStubIDGenerator()
	area := staging.NewArea(c, analyzer, studio.NopLogger{}, idgen)

	svc := studio.NewStudioService(
		store, area, c,
		&testutil.StubGenerator{},
		&testutil.StubCatalog{},
		&testutil.StubEnhancer{},
		studio.NopNotifier{},
		studio.NopLogger{},
		testutil.FixedClock(),
		idgen,
		studio.DefaultHistoryCap,
	)
	t.Cleanup(func() { svc.Close() })

	hub := NewHub(studio.NopLogger{})
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	return New(svc, c, hub, studio.NopLogger{}), svc
}

func seedRecord(t *testing.T, svc *studio.StudioService, id string, ts int64) {
	t.Helper()
	rec, err := svc.ArchiveUpload(studio.FileData{Name: id + ".png", MIME: "image/png", Data: []byte(id)}, "")
	if err != nil {
		t.Fatalf("ArchiveUpload() error = %v", err)
	}
	_ = rec
	_ = ts
}

func TestHandleHistory(t *testing.T) {
	srv, svc := newTestServer(t)
	seedRecord(t, svc, "a", 1)
	seedRecord(t, svc, "b", 2)

	req := httptest.NewRequest(http.MethodGet, "/api/history/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var entries []*studio.AssetRecord
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("history returned %d entries, want 2", len(entries))
	}
}

func TestHandleHistoryEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// Empty history is an empty array, not null.
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty history body = %q, want []", got)
	}
}

func TestHandleHistoryDelete(t *testing.T) {
	srv, svc := newTestServer(t)
	seedRecord(t, svc, "a", 1)

	if err := svc.History().Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	entries := svc.History().Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/history/"+entries[0].ID, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := svc.History().Entries(); len(got) != 0 {
		t.Errorf("history still has %d entries after delete", len(got))
	}
}

func TestHandleHistoryClear(t *testing.T) {
	srv, svc := newTestServer(t)
	seedRecord(t, svc, "a", 1)

	// Without confirmation nothing is cleared.
	req := httptest.NewRequest(http.MethodPost, "/api/history/clear", strings.NewReader(`{"confirm":false}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"cleared":false`) {
		t.Errorf("unconfirmed clear body = %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/history/clear", strings.NewReader(`{"confirm":true}`))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"cleared":true`) {
		t.Errorf("confirmed clear body = %s", w.Body.String())
	}

	if err := svc.History().Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := svc.History().Entries(); len(got) != 0 {
		t.Errorf("history has %d entries after confirmed clear", len(got))
	}
}

func TestHandleModels(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var models []studio.ModelDescriptor
	if err := json.Unmarshal(w.Body.Bytes(), &models); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// Empty catalog falls back to the static models.
	if len(models) != len(studio.StaticModels) {
		t.Errorf("models = %d, want %d", len(models), len(studio.StaticModels))
	}
}

func TestHandleImportRejectsNonArray(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"not":"an array"}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleImportExportRoundTrip(t *testing.T) {
	srv, svc := newTestServer(t)
	seedRecord(t, svc, "a", 1)

	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "vault_backup_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := w.Body.Bytes()

	// Wipe and re-import.
	if _, err := svc.History().ClearAll(func() bool { return true }); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(exported))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"restored":1`) {
		t.Errorf("import body = %s", w.Body.String())
	}
}

func TestHandleRefsAddAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"files":[{"name":"a.png","mime":"image/png","base64":"Zm9v"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/refs/subject", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/refs/subject", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var files []*studio.StagedFile
	if err := json.Unmarshal(w.Body.Bytes(), &files); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("refs list = %d entries, want 1", len(files))
	}
}

func TestHandleLibrary(t *testing.T) {
	srv, svc := newTestServer(t)
	seedRecord(t, svc, "a", 1)

	req := httptest.NewRequest(http.MethodGet, "/api/library/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var assets []*studio.LibraryAsset
	if err := json.Unmarshal(w.Body.Bytes(), &assets); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("library = %d assets, want 1", len(assets))
	}
	if assets[0].Category != studio.LibraryUncategorized {
		t.Errorf("Category = %q, want %q", assets[0].Category, studio.LibraryUncategorized)
	}
}

func TestHandleGenerateBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
