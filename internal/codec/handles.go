package codec

import (
	"sync"

	"github.com/google/uuid"

	"studio-go/internal/studio"
)

// HandleScheme prefixes every display handle minted by a Registry.
// Handles are opaque and only meaningful to the registry that issued
// them, within the current process.
const HandleScheme = "mem://"

// Registry tracks live display handles. Every New must be balanced by
// exactly one Release; Release of an unknown or already-released
// handle is a no-op.
type Registry struct {
	mu      sync.Mutex
	handles map[string]studio.FileData
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]studio.FileData)}
}

func (r *Registry) New(f studio.FileData) string {
	handle := HandleScheme + uuid.New().String()
	r.mu.Lock()
	r.handles[handle] = f
	r.mu.Unlock()
	return handle
}

func (r *Registry) Resolve(handle string) (studio.FileData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.handles[handle]
	return f, ok
}

func (r *Registry) Release(handle string) {
	r.mu.Lock()
	delete(r.handles, handle)
	r.mu.Unlock()
}

func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.handles = make(map[string]studio.FileData)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
