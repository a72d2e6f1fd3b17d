package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/pkg/config"
	"github.com/pianova/piano-adm-api/pkg/jobs"
)

// EventPublisher delivers serialised events to the external transport.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes events onto a Redis channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a Redis client as an EventPublisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends the payload to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis publisher not configured")
	}
	return p.client.Publish(ctx, channel, payload).Err()
}

// Notifier is the engine's outbound event boundary. Delivery is
// at-least-once and fire-and-forget: a failed emission is logged and
// never fails the mutation that produced it.
type Notifier struct {
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
}

// NewNotifier builds the event emitter backed by the jobs queue.
func NewNotifier(publisher EventPublisher, cfg config.NotificationsConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.DomainEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", job.Payload)
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return publisher.Publish(ctx, cfg.Channel, payload)
	}

	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})

	return &Notifier{queue: queue, enabled: cfg.Enabled, logger: logger}
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	if n == nil || !n.enabled {
		return
	}
	n.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (n *Notifier) Stop() {
	if n == nil || !n.enabled {
		return
	}
	n.queue.Stop()
}

// Emit enqueues a domain event. Errors are swallowed after logging.
func (n *Notifier) Emit(event models.DomainEvent) {
	if n == nil || !n.enabled {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("dropping domain event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
