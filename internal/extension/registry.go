package extension

import (
	"slices"
	"strings"
	"sync"
)

// Registry is an in-process Gateway. The host registers extensions as they are
// loaded and disables them when the user turns them off.
type Registry struct {
	mu       sync.RWMutex
	exts     map[string]Extension
	disabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exts:     make(map[string]Extension),
		disabled: make(map[string]bool),
	}
}

// Register adds or replaces an extension.
func (r *Registry) Register(ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts[ext.ID()] = ext
}

// Remove forgets an extension.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exts, id)
	delete(r.disabled, id)
}

// SetEnabled enables or disables an extension without removing it.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		delete(r.disabled, id)
	} else {
		r.disabled[id] = true
	}
}

// Get returns an enabled extension.
func (r *Registry) Get(id string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disabled[id] {
		return nil, false
	}
	ext, ok := r.exts[id]
	return ext, ok
}

// List returns the enabled extensions sorted by id.
func (r *Registry) List() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extension, 0, len(r.exts))
	for id, ext := range r.exts {
		if !r.disabled[id] {
			out = append(out, ext)
		}
	}
	slices.SortFunc(out, func(a, b Extension) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

// Verify Registry implements Gateway at compile time.
var _ Gateway = (*Registry)(nil)
