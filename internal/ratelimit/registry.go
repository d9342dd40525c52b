package ratelimit

import (
	"sync"
	"time"
)

// Registry caches one Limiter per model identity so request quota is shared
// across every session that uses the same model. The process owns the
// registry and passes it to session constructors.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// For returns the limiter for the given model, creating it on first use with
// the supplied capacity and period. Subsequent calls for the same model
// return the cached instance regardless of the arguments.
func (r *Registry) For(modelID string, max int, period time.Duration) (*Limiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[modelID]; ok {
		return l, nil
	}
	l, err := New(max, period, true)
	if err != nil {
		return nil, err
	}
	r.limiters[modelID] = l
	return l, nil
}

// Close stops the refill goroutines of every cached limiter.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.limiters {
		l.Stop()
	}
	r.limiters = make(map[string]*Limiter)
}
