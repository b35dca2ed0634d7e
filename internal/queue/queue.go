// Package queue schedules and runs background catalog work on asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// TypeCatalogRefresh re-fetches the catalog from the store API and rewrites
// the cache.
const TypeCatalogRefresh = "catalog:refresh"

// ErrAlreadyQueued is returned when an equivalent task is still pending.
var ErrAlreadyQueued = errors.New("queue: task already queued")

// CatalogRefreshPayload is the body of a TypeCatalogRefresh task.
type CatalogRefreshPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatalogRefreshTask encodes a refresh request.
func NewCatalogRefreshTask(reason string, at time.Time, opts ...asynq.Option) (*asynq.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual"
	}
	payload, err := json.Marshal(CatalogRefreshPayload{Reason: reason, RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCatalogRefresh, payload, opts...), nil
}

// DecodeCatalogRefresh parses a task payload. An empty payload is a scheduled run.
func DecodeCatalogRefresh(t *asynq.Task) (CatalogRefreshPayload, error) {
	var payload CatalogRefreshPayload
	if len(t.Payload()) == 0 {
		return CatalogRefreshPayload{Reason: "scheduled"}, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return CatalogRefreshPayload{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return payload, nil
}

// TaskClient is the subset of *asynq.Client the Enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes catalog tasks. Requests inside the Unique window collapse
// into the pending task.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Unique   time.Duration
	Now      func() time.Time
}

// EnqueueCatalogRefresh queues a catalog refresh and returns the task id.
func (e Enqueuer) EnqueueCatalogRefresh(ctx context.Context, reason string) (string, error) {
	if e.Client == nil {
		return "", errors.New("queue: task client not configured")
	}
	task, err := NewCatalogRefreshTask(reason, e.now())
	if err != nil {
		return "", err
	}
	info, err := e.Client.EnqueueContext(ctx, task, e.options()...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			recordEnqueue(TypeCatalogRefresh, "duplicate")
			return "", ErrAlreadyQueued
		}
		recordEnqueue(TypeCatalogRefresh, "error")
		return "", fmt.Errorf("enqueue %s: %w", TypeCatalogRefresh, err)
	}
	recordEnqueue(TypeCatalogRefresh, "ok")
	return info.ID, nil
}

func (e Enqueuer) options() []asynq.Option {
	opts := []asynq.Option{asynq.Queue(e.queue())}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	unique := e.Unique
	if unique <= 0 {
		unique = time.Minute
	}
	return append(opts, asynq.Unique(unique))
}

func (e Enqueuer) queue() string {
	if e.Queue == "" {
		return DefaultQueue
	}
	return e.Queue
}

func (e Enqueuer) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// DefaultQueue is the asynq queue catalog tasks run on.
const DefaultQueue = "catalog"

// RedisConnOpt converts a redis:// URL into asynq connection options.
func RedisConnOpt(url string) (asynq.RedisConnOpt, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("queue: redis url is required")
	}
	return asynq.ParseRedisURI(url)
}
