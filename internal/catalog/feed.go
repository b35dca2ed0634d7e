package catalog

import (
	"context"
	"sync"
	"time"
)

// Snapshot is a fully materialised catalog as of a fetch.
type Snapshot struct {
	Products  []Product
	FetchedAt time.Time
	Seq       uint64
}

// Feed keeps the last successfully fetched catalog. Refreshes race freely; a
// result is applied only while its request is still the latest one issued.
type Feed struct {
	Repo Repository
	Now  func() time.Time
	// MaxAge bounds how long Products serves a snapshot before refetching.
	// Zero keeps the first snapshot until Refresh is called.
	MaxAge time.Duration

	gen      Generation
	mu       sync.RWMutex
	snapshot Snapshot
	loaded   bool
}

// Refresh fetches and normalises the full catalog. It reports applied=false
// when a newer refresh was started while this one was in flight.
func (f *Feed) Refresh(ctx context.Context) (snap Snapshot, applied bool, err error) {
	ticket := f.gen.Begin()
	raws, err := f.Repo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	products, err := NormalizeAll(raws)
	if err != nil {
		return Snapshot{}, false, err
	}
	snap = Snapshot{Products: products, FetchedAt: f.now(), Seq: ticket.Seq()}
	applied = f.applyIfCurrent(ticket, snap)
	return snap, applied, nil
}

// Current returns the last applied snapshot and whether one exists.
func (f *Feed) Current() (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot, f.loaded
}

// Products returns the cached catalog, fetching it on first use and once the
// snapshot is older than MaxAge. A failed refetch falls back to the stale
// snapshot.
func (f *Feed) Products(ctx context.Context) ([]Product, error) {
	current, loaded := f.Current()
	if loaded && !f.expired(current) {
		return current.Products, nil
	}
	snap, applied, err := f.Refresh(ctx)
	if err != nil {
		if loaded {
			return current.Products, nil
		}
		return nil, err
	}
	if !applied {
		if current, ok := f.Current(); ok {
			return current.Products, nil
		}
	}
	return snap.Products, nil
}

func (f *Feed) applyIfCurrent(ticket Ticket, snap Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !ticket.Current() {
		return false
	}
	f.snapshot = snap
	f.loaded = true
	return true
}

func (f *Feed) expired(snap Snapshot) bool {
	if f.MaxAge <= 0 {
		return false
	}
	return f.now().Sub(snap.FetchedAt) >= f.MaxAge
}

func (f *Feed) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
