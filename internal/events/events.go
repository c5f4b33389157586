package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventContractCreated = "contract_created"
	EventLeaseRejected   = "lease_rejected"
)

// ContractEventPayload describes an accepted lease for event consumers.
type ContractEventPayload struct {
	ContractID    int64     `json:"contract_id"`
	RequesterID   int64     `json:"requester_id"`
	RequesterName string    `json:"requester_name"`
	RequesterVIP  bool      `json:"requester_vip"`
	ResourceID    int64     `json:"resource_id"`
	ResourceName  string    `json:"resource_name"`
	Price         float64   `json:"price"`
	Hours         []string  `json:"hours"`
	CreatedAt     time.Time `json:"created_at"`
}

// LeaseRejectedPayload describes a request that was not granted.
type LeaseRejectedPayload struct {
	RequesterID int64    `json:"requester_id"`
	ResourceID  int64    `json:"resource_id"`
	TimeFrom    string   `json:"time_from"`
	TimeTo      string   `json:"time_to"`
	Errors      []string `json:"errors"`
}

// Event is a lease outcome as seen by subscribers.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event. Handlers run on the publisher's goroutine
// and must not block; hand slow work to a queue.
type EventHandler func(event *Event) error

// EventBus is an in-process fan-out of events by type.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers the event to every subscriber of its type. All handlers are
// called even if some fail; their errors are joined.
func (b *EventBus) Publish(event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	b.mu.RLock()
	handlers := b.subscribers[event.Type]
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := invoke(handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(handler EventHandler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Type, r)
		}
	}()
	return handler(event)
}

// PublishJSON encodes payload and publishes it. A nil bus drops the event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}
	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
