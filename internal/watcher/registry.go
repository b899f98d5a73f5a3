package watcher

import "sync"

// Registry dedups session workers by game id. It is the only mutable
// state shared across workers.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// Claim reserves a game id; false means a worker already owns it.
func (r *Registry) Claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

// Release frees a game id so a same-id session could be claimed again.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
