package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"studio-go/internal/store"
	"studio-go/internal/studio"
)

// NewTestStore creates an in-memory asset store. It is closed when the
// test completes.
func NewTestStore(t *testing.T) studio.Store {
	t.Helper()

	s := store.NewSQLiteStore(":memory:")
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// StubAnalyzer returns a canned result per image payload, or an error
// for payloads listed in Fail. An optional Gate channel makes every
// call block until the test releases it, so tests can observe the
// loading state and order result delivery.
type StubAnalyzer struct {
	mu      sync.Mutex
	Results map[string]string // base64 payload -> description
	Fail    map[string]error  // base64 payload -> error to return
	Gate    chan struct{}     // if non-nil, each call receives once before returning
	calls   []string
}

func NewStubAnalyzer() *StubAnalyzer {
	return &StubAnalyzer{
		Results: make(map[string]string),
		Fail:    make(map[string]error),
	}
}

func (a *StubAnalyzer) Analyze(ctx context.Context, imageBase64 string, category studio.RefCategory, mimeType string) (string, error) {
	if a.Gate != nil {
		select {
		case <-a.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, imageBase64)

	if err, ok := a.Fail[imageBase64]; ok {
		return "", err
	}
	if result, ok := a.Results[imageBase64]; ok {
		return result, nil
	}
	return "description of " + string(category), nil
}

// Calls returns the payloads analyzed so far.
func (a *StubAnalyzer) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

var _ studio.Analyzer = (*StubAnalyzer)(nil)

// StubGenerator returns canned image results, or Err if set.
type StubGenerator struct {
	mu       sync.Mutex
	Images   []*studio.ImageResult
	Err      error
	requests []studio.GenerateRequest
}

func (g *StubGenerator) Generate(ctx context.Context, req studio.GenerateRequest) ([]*studio.ImageResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	if g.Err != nil {
		return nil, g.Err
	}
	return g.Images, nil
}

// Requests returns the requests seen so far.
func (g *StubGenerator) Requests() []studio.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]studio.GenerateRequest(nil), g.requests...)
}

var _ studio.Generator = (*StubGenerator)(nil)

// StubCatalog returns canned model descriptors, or Err if set.
type StubCatalog struct {
	Models []studio.ModelDescriptor
	Err    error
}

func (c *StubCatalog) ListAvailableModels(ctx context.Context) ([]studio.ModelDescriptor, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Models, nil
}

var _ studio.ModelCatalog = (*StubCatalog)(nil)

// StubEnhancer upper-wraps the prompt, or returns Err if set. The refs
// handed to each call are recorded.
type StubEnhancer struct {
	mu   sync.Mutex
	Err  error
	refs [][]studio.ReferenceImage
}

func (e *StubEnhancer) EnhancePrompt(ctx context.Context, prompt string, refs []studio.ReferenceImage) (string, error) {
	e.mu.Lock()
	e.refs = append(e.refs, refs)
	e.mu.Unlock()

	if e.Err != nil {
		return "", e.Err
	}
	return fmt.Sprintf("enhanced: %s", prompt), nil
}

// Refs returns the reference sets seen so far, one per call.
func (e *StubEnhancer) Refs() [][]studio.ReferenceImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]studio.ReferenceImage(nil), e.refs...)
}

var _ studio.Enhancer = (*StubEnhancer)(nil)

// RecordingNotifier records every event it is handed.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *RecordingNotifier) Notify(event string) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

// Events returns the events recorded so far.
func (n *RecordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

var _ studio.Notifier = (*RecordingNotifier)(nil)
