package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/launchpad/backend/internal/config"
	"github.com/launchpad/backend/pkg/logger"
)

const workerConcurrency = 10

// Worker delivers notification tasks pulled from Redis.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	deliver func(context.Context, *NotificationTask) error

	mu      sync.Mutex
	running bool
}

// NewWorker returns nil when Redis is disabled; delivery then happens in
// process through SyncQueue.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	w := &Worker{mux: asynq.NewServeMux()}
	w.server = asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB},
		asynq.Config{
			Concurrency:  workerConcurrency,
			Queues:       map[string]int{"default": 1},
			Logger:       asynqLogger{},
			ErrorHandler: asynq.ErrorHandlerFunc(logDeliveryFailure),
		},
	)
	w.mux.HandleFunc(TaskTypeNotification, w.handleNotification)
	return w
}

// SetProcessor sets the delivery function, normally NotificationService.Deliver.
func (w *Worker) SetProcessor(deliver func(context.Context, *NotificationTask) error) {
	w.deliver = deliver
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start notification worker: %w", err)
	}
	w.running = true
	logger.Info().Int("concurrency", workerConcurrency).Msg("notification worker started")
	return nil
}

// Stop waits for in-flight deliveries and disconnects from Redis.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("notification worker stopped")
}

func (w *Worker) handleNotification(ctx context.Context, t *asynq.Task) error {
	var task NotificationTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// A malformed payload will never decode; don't burn retries on it.
		return fmt.Errorf("decode notification task: %v: %w", err, asynq.SkipRetry)
	}
	if w.deliver == nil {
		logger.Warn().Uint("recipient_id", task.RecipientID).Str("kind", task.Kind).Msg("no notification processor set, dropping task")
		return nil
	}

	logger.Debug().Uint("recipient_id", task.RecipientID).Str("kind", task.Kind).Msg("delivering notification")
	return w.deliver(ctx, &task)
}

func logDeliveryFailure(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Error().Err(err).
		Str("task_type", t.Type()).
		Int("retry", retried).
		Int("max_retry", maxRetry).
		Msg("notification delivery failed")
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.Debug().Str("component", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.Info().Str("component", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.Warn().Str("component", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.Error().Str("component", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.Fatal().Str("component", "asynq").Msg(fmt.Sprint(args...)) }
