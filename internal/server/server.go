package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studio-go/internal/studio"
)

// Server wires the studio service into an HTTP API.
type Server struct {
	svc    *studio.StudioService
	codec  studio.Codec
	hub    *Hub
	logger studio.Logger
}

func New(svc *studio.StudioService, codec studio.Codec, hub *Hub, logger studio.Logger) *Server {
	return &Server{svc: svc, codec: codec, hub: hub, logger: logger}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/generate", s.handleGenerate)
		r.Post("/enhance", s.handleEnhance)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Delete("/{id}", s.handleHistoryDelete)
			r.Post("/clear", s.handleHistoryClear)
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/", s.handleLibrary)
			r.Post("/confirm", s.handleLibraryConfirm)
			r.Post("/apply", s.handleLibraryApply)
			r.Post("/ingest", s.handleIngest)
		})

		r.Route("/refs", func(r chi.Router) {
			r.Get("/{category}", s.handleRefsList)
			r.Post("/{category}", s.handleRefsAdd)
			r.Post("/{category}/clear", s.handleRefsClear)
			r.Delete("/{category}/{id}", s.handleRefsRemove)
		})

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	r.Get("/ws", s.hub.handleWebSocket)

	return r
}

// wireFile is the JSON shape for file payloads crossing the API.
type wireFile struct {
	Name   string `json:"name"`
	MIME   string `json:"mime"`
	Base64 string `json:"base64"`
}

func (s *Server) decodeFiles(in []wireFile) ([]studio.FileData, error) {
	files := make([]studio.FileData, 0, len(in))
	for _, wf := range in {
		f, err := s.codec.Decode(wf.Base64, wf.MIME)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", wf.Name, err)
		}
		f.Name = wf.Name
		files = append(files, f)
	}
	return files, nil
}

func (s *Server) encodeFile(f studio.FileData) (wireFile, error) {
	dataURL, err := s.codec.Encode(f)
	if err != nil {
		return wireFile{}, err
	}
	return wireFile{Name: f.Name, MIME: f.MIME, Base64: s.codec.Strip(dataURL)}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studio.ErrImportFormat), errors.Is(err, studio.ErrDecode):
		status = http.StatusBadRequest
	case errors.Is(err, studio.ErrConversion):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, studio.ErrGeneration), errors.Is(err, studio.ErrAnalysis):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.ListModels(r.Context()))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt      string `json:"prompt"`
		ModelID     string `json:"modelId"`
		AspectRatio string `json:"aspectRatio"`
		Count       int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	results, err := s.svc.Generate(r.Context(), req.Prompt, req.ModelID, req.AspectRatio, req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"prompt": s.svc.EnhancePrompt(r.Context(), req.Prompt)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.History().Refresh(); err != nil {
		s.writeError(w, err)
		return
	}
	entries := s.svc.History().Entries()
	if entries == nil {
		entries = []*studio.AssetRecord{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.History().Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Notify("history_updated")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cleared, err := s.svc.History().ClearAll(func() bool { return req.Confirm })
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cleared {
		s.hub.Notify("history_updated")
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	assets, err := s.svc.Library().Assets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if filter := r.URL.Query().Get("category"); filter != "" {
		assets = studio.Filter(assets, studio.LibraryCategory(filter))
	}
	if assets == nil {
		assets = []*studio.LibraryAsset{}
	}
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleLibraryConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	files, err := s.svc.Library().ConfirmSelection(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]wireFile, 0, len(files))
	for _, f := range files {
		wf, err := s.encodeFile(f)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, wf)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLibraryApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	staged, err := s.svc.ApplyAsCategory(r.Context(), req.ID, studio.RefCategory(req.Category))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, staged)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Files  []wireFile `json:"files"`
		Filter string     `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	files, err := s.decodeFiles(req.Files)
	if err != nil {
		s.writeError(w, err)
		return
	}

	filter := studio.LibraryCategory(req.Filter)
	if req.Filter == "" {
		filter = studio.LibraryUncategorized
	}
	assets := s.svc.Library().Ingest(r.Context(), files, filter, s.svc.ArchiveUpload)
	s.hub.Notify("history_updated")
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleRefsList(w http.ResponseWriter, r *http.Request) {
	category := studio.RefCategory(chi.URLParam(r, "category"))
	files := s.svc.Staging().Files(category)
	if files == nil {
		files = []*studio.StagedFile{}
	}
	s.writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleRefsAdd(w http.ResponseWriter, r *http.Request) {
	category := studio.RefCategory(chi.URLParam(r, "category"))

	var req struct {
		Files []wireFile `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	files, err := s.decodeFiles(req.Files)
	if err != nil {
		s.writeError(w, err)
		return
	}

	staged := s.svc.StageUploads(r.Context(), category, files)
	s.writeJSON(w, http.StatusOK, staged)
}

func (s *Server) handleRefsClear(w http.ResponseWriter, r *http.Request) {
	category := studio.RefCategory(chi.URLParam(r, "category"))
	s.svc.Staging().ClearCategory(category)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefsRemove(w http.ResponseWriter, r *http.Request) {
	category := studio.RefCategory(chi.URLParam(r, "category"))
	id := chi.URLParam(r, "id")
	s.svc.Staging().RemoveFile(category, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename := studio.ExportFilename(s.svc.Now())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := s.svc.Export(w); err != nil {
		s.logger.Warn("export failed mid-stream", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Import(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"restored": count})
}
