package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesAllHandlersDespiteFailures(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	failure := errors.New("smtp unavailable")

	calls := 0
	dispatcher.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return failure
	})
	dispatcher.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, calls, "a failing handler must not block the rest")
}

func TestPublishWithoutListenersIsQuiet(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	assert.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketReopened}))
}
