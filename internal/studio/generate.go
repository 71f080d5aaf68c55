package studio

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// flattenReferences encodes every staged file across all three buckets
// into request-ready reference images. Encoding runs concurrently; any
// single failure fails the flatten, since a generation request with a
// silently missing reference would not match the user's intent.
func (s *StudioService) flattenReferences(ctx context.Context) ([]ReferenceImage, error) {
	type slot struct {
		category RefCategory
		file     FileData
		keywords string
	}

	var slots []slot
	for _, cat := range Categories {
		for _, entry := range s.staging.Files(cat) {
			slots = append(slots, slot{category: cat, file: entry.File, keywords: entry.AnalysisResult})
		}
	}

	refs := make([]ReferenceImage, len(slots))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for i, sl := range slots {
		g.Go(func() error {
			dataURL, err := s.codec.Encode(sl.file)
			if err != nil {
				return fmt.Errorf("encoding reference %s: %w", sl.file.Name, err)
			}
			mu.Lock()
			refs[i] = ReferenceImage{
				DataURL:  dataURL,
				Keywords: sl.keywords,
				Type:     UploadTypeFor(sl.category),
				Filename: sl.file.Name,
				MimeType: sl.file.MIME,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// Generate runs a full generation pass: flatten staged references, call
// the generation collaborator, archive every returned image, update the
// current-results view, and refresh the history projection.
//
// An empty result set is a generation error; it never corrupts
// previously staged or archived data.
func (s *StudioService) Generate(ctx context.Context, prompt, modelID, aspectRatio string, count int) ([]*ImageResult, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrGeneration)
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	if count < 1 {
		count = 1
	}

	refs, err := s.flattenReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	s.history.SetResults(nil)
	s.history.Select("")

	results, err := s.gen.Generate(ctx, GenerateRequest{
		Prompt:          prompt,
		ModelID:         modelID,
		AspectRatio:     aspectRatio,
		Count:           count,
		ReferenceImages: refs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no images returned", ErrGeneration)
	}

	for _, img := range results {
		if img.ID == "" {
			img.ID = "gen_" + s.idgen.New()
		}
		record := &AssetRecord{
			ID:          img.ID,
			URL:         img.URL,
			Base64:      img.Base64,
			Prompt:      prompt,
			ModelID:     modelID,
			AspectRatio: aspectRatio,
			Timestamp:   s.clock.Now().UnixMilli(),
			Source:      SourceGenerated,
			Seed:        img.Seed,
		}
		if err := s.store.Put(record); err != nil {
			// The image is still presentable this session; only the
			// durable copy failed.
			s.logger.Error("archiving generation result failed", "id", img.ID, "error", err)
		}
	}

	s.history.SetResults(results)
	if err := s.history.Refresh(); err != nil {
		s.logger.Warn("history refresh after generation failed", "error", err)
	}
	s.notifier.Notify("generation_done")

	s.logger.Info("generation complete", "model", modelID, "count", len(results))
	return results, nil
}
