package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	t.Run("DeliversToSubscribersOfType", func(t *testing.T) {
		bus := NewEventBus()
		var got []string
		bus.Subscribe(EventContractCreated, func(e *Event) error {
			got = append(got, "first:"+e.Type)
			return nil
		})
		bus.Subscribe(EventContractCreated, func(e *Event) error {
			got = append(got, "second:"+e.Type)
			return nil
		})
		bus.Subscribe(EventLeaseRejected, func(e *Event) error {
			got = append(got, "rejected")
			return nil
		})

		event := &Event{Type: EventContractCreated}
		require.NoError(t, bus.Publish(event))
		assert.Equal(t, []string{"first:contract_created", "second:contract_created"}, got)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.CreatedAt.IsZero())
	})

	t.Run("NoSubscribers", func(t *testing.T) {
		assert.NoError(t, NewEventBus().Publish(&Event{Type: "unknown"}))
	})

	t.Run("HandlerErrorsAreJoined", func(t *testing.T) {
		bus := NewEventBus()
		errFull := errors.New("queue full")
		called := 0
		bus.Subscribe(EventLeaseRejected, func(*Event) error {
			called++
			return errFull
		})
		bus.Subscribe(EventLeaseRejected, func(*Event) error {
			called++
			panic("boom")
		})
		bus.Subscribe(EventLeaseRejected, func(*Event) error {
			called++
			return nil
		})

		err := bus.Publish(&Event{Type: EventLeaseRejected})
		assert.Equal(t, 3, called)
		assert.ErrorIs(t, err, errFull)
		assert.ErrorContains(t, err, "panicked: boom")
	})

	t.Run("NilBusDropsEvents", func(t *testing.T) {
		var bus *EventBus
		assert.NoError(t, bus.PublishJSON(EventContractCreated, ContractEventPayload{}))
	})
}

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()
	var received *Event
	bus.Subscribe(EventContractCreated, func(e *Event) error {
		received = e
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventContractCreated, ContractEventPayload{
		ContractID: 123,
		Hours:      []string{"2017-01-01 01"},
	}))
	require.NotNil(t, received)

	var decoded ContractEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, int64(123), decoded.ContractID)
	assert.Equal(t, []string{"2017-01-01 01"}, decoded.Hours)

	assert.Error(t, bus.PublishJSON(EventContractCreated, make(chan int)))
}
