package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leasemarket/internal/events"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Enqueue when the delivery buffer is exhausted.
var ErrQueueFull = errors.New("event queue is full")

// Sink delivers a single event to an external system.
type Sink interface {
	Deliver(ctx context.Context, event *events.Event) error
}

// deadLetter is what ends up in Redis after the retries are spent.
type deadLetter struct {
	EventID  string          `json:"event_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

// EventWorker moves bus events to a Sink off the request path.
type EventWorker struct {
	sink          Sink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan events.Event
	deadLetterKey string
	logger        *zerolog.Logger
}

// NewEventWorker builds a worker with sane defaults. redisClient may be nil,
// in which case undeliverable events are only logged.
func NewEventWorker(sink Sink, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *EventWorker {
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryPolicy
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventWorker{
		sink:          sink,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan events.Event, 1024),
		deadLetterKey: "lease_events:deadletter",
		logger:        logger,
	}
}

// Attach subscribes the worker to the given event types.
func (w *EventWorker) Attach(bus *events.EventBus, eventTypes ...string) {
	for _, eventType := range eventTypes {
		bus.Subscribe(eventType, w.Enqueue)
	}
}

// Enqueue never blocks the publisher.
func (w *EventWorker) Enqueue(event *events.Event) error {
	select {
	case w.queue <- *event:
		return nil
	default:
		w.logger.Warn().Str("event_id", event.ID).Str("event_type", event.Type).Msg("event dropped: queue full")
		return ErrQueueFull
	}
}

// Start launches main loop; stops when ctx is done.
func (w *EventWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("event worker started")
	defer w.logger.Info().Msg("event worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.deliver(ctx, &event)
		}
	}
}

func (w *EventWorker) deliver(ctx context.Context, event *events.Event) {
	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		attempts = attempt
		lastErr = w.sink.Deliver(ctx, event)
		if lastErr == nil {
			return
		}
		if attempt == w.retryPolicy.MaxRetries {
			break
		}
		w.logger.Debug().Err(lastErr).Int("attempt", attempt).Str("event_id", event.ID).Msg("event delivery retry")
		if err := w.retryPolicy.Wait(ctx, attempt); err != nil {
			lastErr = err
			break
		}
	}

	w.logger.Error().Err(lastErr).Str("event_id", event.ID).Str("event_type", event.Type).Msg("event delivery failed")
	w.pushDeadLetter(context.WithoutCancel(ctx), event, attempts, lastErr)
}

func (w *EventWorker) pushDeadLetter(ctx context.Context, event *events.Event, attempts int, cause error) {
	if w.redis == nil {
		return
	}
	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		payload = nil
	}
	data, err := json.Marshal(deadLetter{
		EventID:  event.ID,
		Type:     event.Type,
		Payload:  payload,
		Attempts: attempts,
		Error:    cause.Error(),
		FailedAt: time.Now(),
	})
	if err != nil {
		w.logger.Error().Err(err).Str("event_id", event.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("event_id", event.ID).Msg("deadletter push")
	}
}
