package cart

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps one Cart per shopper session in memory. Carts idle for longer
// than TTL are dropped.
type Store struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	cart      *Cart
	expiresAt time.Time
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create registers a new empty cart and returns its id.
func (s *Store) Create() (string, *Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	id := uuid.NewString()
	c := New()
	s.entriesLocked()[id] = &entry{cart: c, expiresAt: s.now().Add(s.ttl())}
	return id, c
}

// Get returns the cart for id and extends its lifetime.
func (s *Store) Get(id string) (*Cart, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entriesLocked()[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	now := s.now()
	if !e.expiresAt.After(now) {
		delete(s.entries, id)
		return nil, ErrCartNotFound
	}
	e.expiresAt = now.Add(s.ttl())
	return e.cart, nil
}

// Delete drops the cart for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entriesLocked(), strings.TrimSpace(id))
}

// Len returns the number of live carts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *Store) sweepLocked() {
	now := s.now()
	for id, e := range s.entriesLocked() {
		if !e.expiresAt.After(now) {
			delete(s.entries, id)
		}
	}
}

func (s *Store) entriesLocked() map[string]*entry {
	if s.entries == nil {
		s.entries = make(map[string]*entry)
	}
	return s.entries
}
