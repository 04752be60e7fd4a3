package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventGoldenRegistered EventType = "golden.registered"
	EventGoldenRefreshed  EventType = "golden.refreshed"
	EventGoldenRemoved    EventType = "golden.removed"
	EventRepoActivated    EventType = "repo.activated"
	EventRepoDeactivated  EventType = "repo.deactivated"
	EventRepoSynced       EventType = "repo.synced"
	EventBranchSwitched   EventType = "branch.switched"
	EventJobSubmitted     EventType = "job.submitted"
	EventJobCompleted     EventType = "job.completed"
	EventJobFailed        EventType = "job.failed"
	EventJobCancelled     EventType = "job.cancelled"
)

// Event represents a server event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

const (
	brokerBuffer     = 100
	subscriberBuffer = 50
)

// Subscriber is a channel that receives events
type Subscriber chan *Event

// subscription pairs a delivery channel with an optional type filter.
// An empty filter receives everything.
type subscription struct {
	ch     Subscriber
	filter map[EventType]bool
}

// Broker fans events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full misses the event rather than blocking
// the publisher.
type Broker struct {
	mu      sync.RWMutex
	subs    map[Subscriber]*subscription
	eventCh chan *Event
	stopCh  chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[Subscriber]*subscription),
		eventCh: make(chan *Event, brokerBuffer),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe returns a channel receiving every published event
func (b *Broker) Subscribe() Subscriber {
	return b.SubscribeTypes()
}

// SubscribeTypes returns a channel receiving only the named event types;
// with no arguments it receives everything.
func (b *Broker) SubscribeTypes(eventTypes ...EventType) Subscriber {
	sub := &subscription{ch: make(Subscriber, subscriberBuffer)}
	if len(eventTypes) > 0 {
		sub.filter = make(map[EventType]bool, len(eventTypes))
		for _, eventType := range eventTypes {
			sub.filter[eventType] = true
		}
	}

	b.mu.Lock()
	b.subs[sub.ch] = sub
	b.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(ch Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish queues an event for distribution, stamping the time when the
// caller left it zero.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
