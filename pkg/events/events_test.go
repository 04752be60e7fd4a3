package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventRepoActivated, Metadata: map[string]string{"user_alias": "hello"}})

	for _, sub := range []Subscriber{first, second} {
		event := receive(t, sub)
		assert.Equal(t, EventRepoActivated, event.Type)
		assert.Equal(t, "hello", event.Metadata["user_alias"])
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestSubscribeTypesFilters(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	jobEvents := broker.SubscribeTypes(EventJobCompleted, EventJobFailed)

	broker.Publish(&Event{Type: EventRepoActivated})
	broker.Publish(&Event{Type: EventJobFailed, ID: "j1"})

	event := receive(t, jobEvents)
	assert.Equal(t, EventJobFailed, event.Type)
	assert.Equal(t, "j1", event.ID)
	assert.Empty(t, jobEvents)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)
	assert.Zero(t, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)

	// Double unsubscribe is a no-op
	broker.Unsubscribe(sub)
}

func TestFullSubscriberDoesNotBlockPublisher(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.SubscribeTypes(EventJobSubmitted)
	for i := 0; i < subscriberBuffer+10; i++ {
		broker.Publish(&Event{Type: EventJobSubmitted})
	}

	// Drain what fit; the publisher never blocked
	require.Eventually(t, func() bool {
		return len(sub) == subscriberBuffer
	}, 2*time.Second, 10*time.Millisecond)
}
