package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/events"
)

type captureStore struct {
	events []events.Event
	err    error
}

func (c *captureStore) Append(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitRecordsEvent(t *testing.T) {
	store := &captureStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	payload := map[string]any{"productId": "9"}
	event, err := bus.Emit(context.Background(), events.TopicCartItemAdded, "cart-1", payload)
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Equal(t, fixed, event.OccurredAt)
	require.Len(t, store.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "9", decoded["productId"])
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "cart-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicCartCleared, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicCartCleared, "cart-1", "{not json")
	require.Error(t, err)
}

func TestEmitJoinsStoreErrorButStillNotifies(t *testing.T) {
	store := &captureStore{err: errors.New("boom")}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	_, err := bus.Emit(context.Background(), events.TopicCartCleared, "cart-1", nil)
	require.Error(t, err)
	require.Len(t, notifier.events, 1)
	require.JSONEq(t, `{}`, string(notifier.events[0].Payload))
}

func TestNilBusDiscards(t *testing.T) {
	var bus *events.Bus
	ev, err := bus.Emit(context.Background(), events.TopicCartCleared, "cart-1", nil)
	require.NoError(t, err)
	require.Empty(t, ev.ID)
}

func TestRedisStreamStoreAppends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := events.Bus{Store: &events.RedisStreamStore{Client: client}}
	ev, err := bus.Emit(context.Background(), events.TopicCatalogRefreshed, "catalog", map[string]int{"products": 20})
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ev.ID, entries[0].Values["id"])
	require.Equal(t, events.TopicCatalogRefreshed, entries[0].Values["topic"])
	require.JSONEq(t, `{"products":20}`, entries[0].Values["payload"].(string))
}
