package studio

import (
	"context"
	"fmt"
	"time"
)

// StudioService is the orchestration layer that coordinates the vault
// store, the staging area, the library aggregator and the external
// generation/analysis collaborators.
type StudioService struct {
	store    Store
	staging  StagingArea
	codec    Codec
	gen      Generator
	catalog  ModelCatalog
	enhancer Enhancer
	notifier Notifier
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	history *History
	library *Library
}

// NewStudioService creates a StudioService with the provided
// dependencies. historyCap bounds the in-memory history projection.
func NewStudioService(store Store, staging StagingArea, codec Codec, gen Generator, catalog ModelCatalog, enhancer Enhancer, notifier Notifier, logger Logger, clock Clock, idgen IDGenerator, historyCap int) *StudioService {
	s := &StudioService{
		store:    store,
		staging:  staging,
		codec:    codec,
		gen:      gen,
		catalog:  catalog,
		enhancer: enhancer,
		notifier: notifier,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
	s.history = NewHistory(store, logger, historyCap)
	s.library = NewLibrary(store, codec, logger, clock, idgen, historyCap)
	return s
}

// History returns the history synchronization layer.
func (s *StudioService) History() *History { return s.history }

// Library returns the asset library aggregator.
func (s *StudioService) Library() *Library { return s.library }

// Staging returns the reference staging area.
func (s *StudioService) Staging() StagingArea { return s.staging }

// Now exposes the service clock for callers that need consistent time,
// such as export filenames.
func (s *StudioService) Now() time.Time { return s.clock.Now() }

// ListModels returns the proxy's model catalog, falling back to the
// static list when the call fails or returns nothing.
func (s *StudioService) ListModels(ctx context.Context) []ModelDescriptor {
	models, err := s.catalog.ListAvailableModels(ctx)
	if err != nil {
		s.logger.Warn("model listing failed, using static catalog", "error", err)
		return StaticModels
	}
	if len(models) == 0 {
		return StaticModels
	}
	return models
}

// EnhancePrompt rewrites the prompt via the enhancement collaborator,
// informed by the currently staged references. The original prompt is
// returned unchanged if enhancement fails.
func (s *StudioService) EnhancePrompt(ctx context.Context, prompt string) string {
	refs, err := s.flattenReferences(ctx)
	if err != nil {
		s.logger.Warn("reference flattening failed for enhancement", "error", err)
		refs = nil
	}
	enhanced, err := s.enhancer.EnhancePrompt(ctx, prompt, refs)
	if err != nil || enhanced == "" {
		s.logger.Warn("prompt enhancement failed", "error", err)
		return prompt
	}
	return enhanced
}

// ArchiveUpload writes a user-supplied file into the vault as an upload
// record. This is the auto-archive entry point shared by drag-drop,
// paste and library ingestion; plain staging inserts do not archive.
// The temporary display handle minted for the record's URL is revoked
// once the base64 payload is safely stored.
func (s *StudioService) ArchiveUpload(f FileData, uploadType UploadType) (*AssetRecord, error) {
	dataURL, err := s.codec.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encoding upload: %w", err)
	}

	handle := s.codec.NewHandle(f)
	record := &AssetRecord{
		ID:          "upload_" + s.idgen.New(),
		URL:         handle,
		Base64:      s.codec.Strip(dataURL),
		Prompt:      DefaultPrompt,
		ModelID:     UploadModelID,
		AspectRatio: "auto",
		Timestamp:   s.clock.Now().UnixMilli(),
		Source:      SourceUpload,
		UploadType:  uploadType,
	}

	if err := s.store.Put(record); err != nil {
		s.codec.Release(handle)
		return nil, fmt.Errorf("archiving upload: %w", err)
	}

	// The record is recoverable from base64 alone; the handle was only
	// needed while the write could still fail.
	s.codec.Release(handle)

	s.logger.Info("upload archived", "id", record.ID, "uploadType", string(uploadType))
	return record, nil
}

// StageUploads archives each file into the vault under the active
// category, then stages all of them for analysis. Archival failures are
// isolated per file: a file that cannot be archived is still staged.
func (s *StudioService) StageUploads(ctx context.Context, category RefCategory, files []FileData) []*StagedFile {
	for _, f := range files {
		if _, err := s.ArchiveUpload(f, UploadTypeFor(category)); err != nil {
			s.logger.Error("auto-archive failed", "file", f.Name, "error", err)
		}
	}
	staged := s.staging.AddFiles(ctx, category, files)
	s.notifier.Notify("history_updated")
	return staged
}

// ApplyAsCategory converts one library asset into a file and routes it
// into the staging area under the given category, triggering the same
// analysis dispatch as a fresh upload. No separate archival happens.
func (s *StudioService) ApplyAsCategory(ctx context.Context, id string, category RefCategory) (*StagedFile, error) {
	asset, ok := s.library.Asset(ctx, id)
	if !ok {
		return nil, fmt.Errorf("library asset not found: %s", id)
	}
	f, err := s.library.AssetToFile(ctx, asset)
	if err != nil {
		return nil, err
	}
	s.staging.SetActiveCategory(category)
	staged := s.staging.AddFiles(ctx, category, []FileData{f})
	if len(staged) == 0 {
		return nil, fmt.Errorf("staging asset %s failed", id)
	}
	return staged[0], nil
}

// Close releases transient resources and closes the store.
func (s *StudioService) Close() error {
	s.staging.Teardown()
	s.codec.ReleaseAll()
	return s.store.Close()
}
