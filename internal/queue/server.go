package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// NewServeMux routes catalog task types to their handlers.
func NewServeMux(refresh *RefreshHandler, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(instrument(logger))
	mux.Handle(TypeCatalogRefresh, refresh)
	return mux
}

// instrument records the outcome and duration of every task.
func instrument(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			status := "ok"
			if err != nil {
				status = "retry"
				if errors.Is(err, asynq.SkipRetry) {
					status = "failed"
				}
			}
			recordProcessed(t.Type(), status)
			taskID, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			evt := logger.Debug()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			evt.Str("task_type", t.Type()).
				Str("task_id", taskID).
				Int("retry", retried).
				Dur("elapsed", time.Since(start)).
				Msg("task processed")
			return err
		})
	}
}

// ServerConfig configures the asynq worker server.
type ServerConfig struct {
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// NewServer builds an asynq server consuming DefaultQueue.
func NewServer(opt asynq.RedisConnOpt, cfg ServerConfig) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := cfg.Logger
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{DefaultQueue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          Logger{L: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).
				Str("task_type", t.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})
}

// NewScheduler registers the periodic catalog refresh under cronspec.
func NewScheduler(opt asynq.RedisConnOpt, cronspec string, logger zerolog.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: Logger{L: logger}})
	task := asynq.NewTask(TypeCatalogRefresh, nil)
	entryID, err := scheduler.Register(cronspec, task, asynq.Queue(DefaultQueue), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("schedule %s %q: %w", TypeCatalogRefresh, cronspec, err)
	}
	logger.Info().Str("entry_id", entryID).Str("cron", cronspec).Msg("catalog refresh scheduled")
	return scheduler, nil
}

// Logger adapts zerolog to asynq.Logger.
type Logger struct {
	L zerolog.Logger
}

func (l Logger) Debug(args ...interface{}) { l.L.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...interface{})  { l.L.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...interface{})  { l.L.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...interface{}) { l.L.Error().Msg(fmt.Sprint(args...)) }
func (l Logger) Fatal(args ...interface{}) { l.L.Fatal().Msg(fmt.Sprint(args...)) }
