package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	list      []RawProduct
	listErr   error
	calls     int
	onListAll func(call int)
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]RawProduct, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	list, err := f.list, f.listErr
	hook := f.onListAll
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return list, err
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (RawProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, raw := range f.list {
		if string(raw.ID) == id {
			return raw, nil
		}
	}
	return RawProduct{}, ErrNotFound
}

func (f *fakeRepo) ListByCategory(ctx context.Context, category string) ([]RawProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []RawProduct
	for _, raw := range f.list {
		if raw.Category == category {
			out = append(out, raw)
		}
	}
	return out, f.listErr
}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rawProduct(id, category, price string) RawProduct {
	return RawProduct{ID: RecordID(id), Title: strPtr("Product " + id), Price: decPtr(price), Category: category}
}

func TestGenerationTickets(t *testing.T) {
	var gen Generation
	first := gen.Begin()
	require.True(t, first.Current())
	observed := gen.Observe()
	require.True(t, observed.Current())
	require.Equal(t, first.Seq(), observed.Seq())

	second := gen.Begin()
	require.False(t, first.Current())
	require.False(t, observed.Current())
	require.True(t, second.Current())
	require.False(t, Ticket{}.Current())
}

func TestFeedProductsCachesSnapshot(t *testing.T) {
	repo := &fakeRepo{list: []RawProduct{rawProduct("1", "a", "1.00")}}
	feed := &Feed{Repo: repo}

	products, err := feed.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)

	_, err = feed.Products(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.callCount())
}

func TestFeedRefetchesAfterMaxAgeAndFallsBackToStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{list: []RawProduct{rawProduct("1", "a", "1.00")}}
	feed := &Feed{Repo: repo, MaxAge: time.Minute, Now: func() time.Time { return now }}

	_, err := feed.Products(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	repo.mu.Lock()
	repo.list = nil
	repo.listErr = errors.New("store down")
	repo.mu.Unlock()

	products, err := feed.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, 2, repo.callCount())
}

func TestFeedProductsPropagatesFirstError(t *testing.T) {
	feed := &Feed{Repo: &fakeRepo{listErr: errors.New("boom")}}
	_, err := feed.Products(context.Background())
	require.Error(t, err)
	_, ok := feed.Current()
	require.False(t, ok)
}

func TestFeedRejectsMalformedCatalog(t *testing.T) {
	feed := &Feed{Repo: &fakeRepo{list: []RawProduct{{ID: "1"}}}}
	_, _, err := feed.Refresh(context.Background())
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestFeedOlderRefreshDoesNotOverwriteNewer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	repo := &fakeRepo{list: []RawProduct{rawProduct("old", "a", "1.00")}}
	repo.onListAll = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	feed := &Feed{Repo: repo}

	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		_, applied, err := feed.Refresh(context.Background())
		done <- result{applied, err}
	}()
	<-started

	repo.mu.Lock()
	repo.list = []RawProduct{rawProduct("new", "a", "2.00")}
	repo.mu.Unlock()
	_, applied, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, applied)

	close(release)
	older := <-done
	require.NoError(t, older.err)
	require.False(t, older.applied)

	snap, ok := feed.Current()
	require.True(t, ok)
	require.Equal(t, "new", snap.Products[0].ID)
}
