// Package events appends application lifecycle events to a Redis stream.
// The stream is an audit trail; nothing in this service consumes it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizpermit/permitdesk/internal/metrics"
	"github.com/bizpermit/permitdesk/internal/model"
)

const (
	// StreamKey is the Redis stream for lifecycle events.
	StreamKey = "stream:application_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event types.
const (
	TypeSubmitted          = "application.submitted"
	TypeReviewed           = "application.reviewed"
	TypeAttachmentRecorded = "application.attachment_recorded"
)

// Event is one lifecycle change.
type Event struct {
	Type          string       `json:"type"`
	ApplicationID string       `json:"application_id"`
	ActorID       string       `json:"actor_id"`
	Status        model.Status `json:"status,omitempty"`
	Slot          model.Slot   `json:"slot,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// Emitter records lifecycle events. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Publisher writes events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new lifecycle event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream and returns its stream id.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// Emit publishes with PublishTimeout, detached from the caller's
// cancellation. Failures are logged and counted.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()

	streamID, err := p.Publish(ctx, event)
	if err != nil {
		p.logger.Warn("failed to publish lifecycle event",
			"type", event.Type,
			"application_id", event.ApplicationID,
			"error", err,
		)
		p.metrics.IncEventPublished("dropped")
		return
	}

	p.logger.Debug("lifecycle event published",
		"type", event.Type,
		"application_id", event.ApplicationID,
		"stream_id", streamID,
	)
	p.metrics.IncEventPublished("success")
}

// Discard is an Emitter that drops every event.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(context.Context, Event) {}
