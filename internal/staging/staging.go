// Package staging holds reference images grouped by category while
// they await use in a generation. Each staged file is analyzed in the
// background; per-file failures never disturb siblings.
package staging

import (
	"context"
	"sync"

	"studio-go/internal/studio"
)

// Area implements studio.StagingArea. All bucket state is guarded by
// one mutex; analysis runs in a goroutine per file and reports back
// through complete.
type Area struct {
	codec    studio.Codec
	analyzer studio.Analyzer
	logger   studio.Logger
	idgen    studio.IDGenerator

	mu       sync.Mutex
	active   studio.RefCategory
	buckets  map[studio.RefCategory][]*studio.StagedFile
	inflight sync.WaitGroup
}

func NewArea(codec studio.Codec, analyzer studio.Analyzer, logger studio.Logger, idgen studio.IDGenerator) *Area {
	buckets := make(map[studio.RefCategory][]*studio.StagedFile, len(studio.Categories))
	for _, cat := range studio.Categories {
		buckets[cat] = nil
	}
	return &Area{
		codec:    codec,
		analyzer: analyzer,
		logger:   logger,
		idgen:    idgen,
		active:   studio.CategorySubject,
		buckets:  buckets,
	}
}

var _ studio.StagingArea = (*Area)(nil)

// AddFiles stages files into the category's bucket and kicks off one
// analysis per file. Entries appear immediately in loading state; the
// returned slice reflects that initial state.
func (a *Area) AddFiles(ctx context.Context, category studio.RefCategory, files []studio.FileData) []*studio.StagedFile {
	staged := make([]*studio.StagedFile, 0, len(files))

	a.mu.Lock()
	for _, f := range files {
		sf := &studio.StagedFile{
			ID:             a.idgen.New(),
			File:           f,
			Preview:        a.codec.NewHandle(f),
			AnalysisStatus: studio.AnalysisLoading,
		}
		a.buckets[category] = append(a.buckets[category], sf)
		staged = append(staged, snapshot(sf))
	}
	a.mu.Unlock()

	for _, sf := range staged {
		a.inflight.Add(1)
		go a.analyze(ctx, category, sf.ID, sf.File)
	}

	return staged
}

// analyze runs one file's analysis and reports the terminal state.
// The file may be gone by the time the result lands; complete discards
// such late results.
func (a *Area) analyze(ctx context.Context, category studio.RefCategory, id string, f studio.FileData) {
	defer a.inflight.Done()

	dataURL, err := a.codec.Encode(f)
	if err != nil {
		a.logger.Warn("reference analysis failed", "id", id, "error", err)
		a.complete(category, id, studio.AnalysisError, "")
		return
	}

	result, err := a.analyzer.Analyze(ctx, a.codec.Strip(dataURL), category, f.MIME)
	if err != nil {
		a.logger.Warn("reference analysis failed", "id", id, "error", err)
		a.complete(category, id, studio.AnalysisError, "")
		return
	}

	a.complete(category, id, studio.AnalysisDone, result)
}

// complete installs a terminal analysis state. Results for files that
// were removed meanwhile, or that already reached a terminal state,
// are dropped.
func (a *Area) complete(category studio.RefCategory, id string, status studio.AnalysisStatus, result string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sf := range a.buckets[category] {
		if sf.ID != id {
			continue
		}
		if sf.AnalysisStatus == studio.AnalysisDone || sf.AnalysisStatus == studio.AnalysisError {
			return
		}
		sf.AnalysisStatus = status
		sf.AnalysisResult = result
		return
	}
	a.logger.Debug("discarding analysis result for removed file", "id", id)
}

// UpdateFile applies a partial update to one staged file. Unknown IDs
// are a no-op.
func (a *Area) UpdateFile(category studio.RefCategory, id string, patch studio.StagedFilePatch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sf := range a.buckets[category] {
		if sf.ID != id {
			continue
		}
		if patch.AnalysisStatus != nil {
			sf.AnalysisStatus = *patch.AnalysisStatus
		}
		if patch.AnalysisResult != nil {
			sf.AnalysisResult = *patch.AnalysisResult
		}
		return
	}
}

// RemoveFile drops one staged file and releases its preview handle.
func (a *Area) RemoveFile(category studio.RefCategory, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := a.buckets[category]
	for i, sf := range bucket {
		if sf.ID != id {
			continue
		}
		a.codec.Release(sf.Preview)
		a.buckets[category] = append(bucket[:i], bucket[i+1:]...)
		return
	}
}

// ClearCategory empties one bucket, releasing every preview handle.
// Other buckets are untouched.
func (a *Area) ClearCategory(category studio.RefCategory) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sf := range a.buckets[category] {
		a.codec.Release(sf.Preview)
	}
	a.buckets[category] = nil
}

func (a *Area) SetActiveCategory(category studio.RefCategory) {
	a.mu.Lock()
	a.active = category
	a.mu.Unlock()
}

func (a *Area) ActiveCategory() studio.RefCategory {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Files returns a snapshot of the category's bucket in staging order.
func (a *Area) Files(category studio.RefCategory) []*studio.StagedFile {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := a.buckets[category]
	out := make([]*studio.StagedFile, len(bucket))
	for i, sf := range bucket {
		out[i] = snapshot(sf)
	}
	return out
}

// Teardown clears every bucket and releases all preview handles.
func (a *Area) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for cat, bucket := range a.buckets {
		for _, sf := range bucket {
			a.codec.Release(sf.Preview)
		}
		a.buckets[cat] = nil
	}
}

// Wait blocks until all in-flight analyses have reported. Tests use
// this to observe terminal states deterministically.
func (a *Area) Wait() {
	a.inflight.Wait()
}

func snapshot(sf *studio.StagedFile) *studio.StagedFile {
	dup := *sf
	return &dup
}
