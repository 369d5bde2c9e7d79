package memory

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Slots implements repository.Slots using an in-memory map. Values expire
// ttl after their last write or read; a zero ttl never expires.
type Slots struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// New creates an empty in-memory slot store.
func New(ttl time.Duration) *Slots {
	return &Slots{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns a copy of the value under key and extends its expiry.
func (s *Slots) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || s.expired(e) {
		delete(s.items, key)
		return nil, apperrors.NotFound("slot", key)
	}
	e.expiresAt = s.expiry()
	s.items[key] = e

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value under key.
func (s *Slots) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{value: v, expiresAt: s.expiry()}
	return nil
}

// Delete removes key.
func (s *Slots) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len returns the number of live keys.
func (s *Slots) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.items {
		if !s.expired(e) {
			n++
		}
	}
	return n
}

func (s *Slots) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *Slots) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
