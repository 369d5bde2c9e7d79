package catalog

import (
	"context"
	"sync"
	"time"
)

type registryEntry struct {
	browser  *Browser
	lastUsed time.Time
}

// Registry keeps one Browser per session and drops browsers idle for longer
// than ttl.
type Registry struct {
	lister   Lister
	pageSize int
	ttl      time.Duration

	mu       sync.Mutex
	browsers map[string]*registryEntry
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(lister Lister, pageSize int, ttl time.Duration) *Registry {
	return &Registry{
		lister:   lister,
		pageSize: pageSize,
		ttl:      ttl,
		browsers: make(map[string]*registryEntry),
		now:      time.Now,
	}
}

// Browser returns the browser of sessionID, creating it on first use. An
// empty session id gets a fresh, unregistered browser.
func (r *Registry) Browser(sessionID string) *Browser {
	if sessionID == "" {
		return NewBrowser(r.lister, r.pageSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.browsers[sessionID]
	if !ok {
		e = &registryEntry{browser: NewBrowser(r.lister, r.pageSize)}
		r.browsers[sessionID] = e
	}
	e.lastUsed = r.now()
	return e.browser
}

// Len returns the number of registered browsers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.browsers)
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	for id, e := range r.browsers {
		if e.lastUsed.Before(cutoff) {
			delete(r.browsers, id)
		}
	}
}

// Run evicts idle browsers every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}
