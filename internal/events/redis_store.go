package events

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "storefront:events"

// RedisStreamStore appends events to a capped Redis stream.
type RedisStreamStore struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

// Append implements EventStore.
func (s *RedisStreamStore) Append(ctx context.Context, event Event) error {
	if s == nil || s.Client == nil {
		return errors.New("events: redis client not configured")
	}
	stream := s.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          event.ID,
			"topic":       event.Topic,
			"aggregateId": event.AggregateID,
			"payload":     string(event.Payload),
			"occurredAt":  event.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}
