package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/printforge/fulfillment-api/internal/models"
	"github.com/printforge/fulfillment-api/pkg/config"
	"github.com/printforge/fulfillment-api/pkg/jobs"
)

type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

type eventBroker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisBroker struct {
	client *redis.Client
}

func (b redisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func changeChannel(orderID, table string) string {
	return fmt.Sprintf("changes:%s:%s", orderID, table)
}

func changePattern(orderID string) string {
	return fmt.Sprintf("changes:%s:*", orderID)
}

// NotifierService fans change events out to live viewers over Redis Pub/Sub.
// Publish is fire-and-forget through a worker queue so writers never block on
// Redis; each delivered event also drops the order's cached progress view so
// the next read recomputes.
type NotifierService struct {
	client  *redis.Client
	broker  eventBroker
	cache   cacheInvalidator
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotifierService constructs the notifier with its publish queue.
func NewNotifierService(client *redis.Client, cache cacheInvalidator, cfg config.NotifierConfig, metrics *MetricsService, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{client: client, cache: cache, metrics: metrics, logger: logger}
	if client != nil {
		s.broker = redisBroker{client: client}
	}
	s.queue = jobs.NewQueue("change-notifier", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the publish workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the publish workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// Publish enqueues a change event for delivery. The caller's write path only
// pays a buffered channel send; before the workers start (or after they stop)
// the event is dropped with a log line, which viewers recover from on their
// next poll.
func (s *NotifierService) Publish(event models.ChangeEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "change_event",
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("change_event_dropped",
			zap.String("order_id", event.OrderID),
			zap.String("table", event.Table),
			zap.Error(err),
		)
	}
}

func (s *NotifierService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ChangeEvent)
	if !ok {
		s.logger.Error("change_event_bad_payload", zap.String("job_id", job.ID))
		return nil
	}

	// Invalidate before publishing so subscribers who refetch immediately
	// never read the pre-change cached view.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, progressCacheKey(event.OrderID)); err != nil {
			s.logger.Warn("progress_cache_invalidate_failed",
				zap.String("order_id", event.OrderID), zap.Error(err))
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("change_event_encode_failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	if err := s.broker.Publish(ctx, changeChannel(event.OrderID, event.Table), payload); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	s.metrics.RecordChangeEvent()
	return nil
}

// Subscribe streams all change events for one order until cancel is called or
// the context ends. Slow consumers skip events rather than stalling delivery.
func (s *NotifierService) Subscribe(ctx context.Context, orderID string) (<-chan models.ChangeEvent, func(), error) {
	sub := s.client.PSubscribe(ctx, changePattern(orderID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe order %s: %w", orderID, err)
	}

	events := make(chan models.ChangeEvent, 16)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("change_event_decode_failed",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case events <- event:
			default:
				s.logger.Debug("change_event_skipped", zap.String("order_id", orderID))
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("change_subscription_close_failed",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return events, cancel, nil
}
