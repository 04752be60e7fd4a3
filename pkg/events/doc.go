/*
Package events provides an in-process event broker for Quarry's pub/sub
messaging.

The events package implements a lightweight event bus broadcasting
repository and job lifecycle events to interested subscribers. It
supports type-filtered subscriptions with asynchronous, best-effort
delivery, enabling loose coupling between the managers that emit state
changes and the consumers that observe them.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - in-memory message bus                    │          │
	│  │  - non-blocking publish                     │          │
	│  │  - per-subscriber type filters              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop (filter per subscription)   │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Golden Repository Events:                  │          │
	│  │    - golden.registered                      │          │
	│  │    - golden.refreshed                       │          │
	│  │    - golden.removed                         │          │
	│  │                                              │          │
	│  │  Activated Repository Events:               │          │
	│  │    - repo.activated                         │          │
	│  │    - repo.deactivated                       │          │
	│  │    - repo.synced                            │          │
	│  │    - branch.switched                        │          │
	│  │                                              │          │
	│  │  Job Events:                                │          │
	│  │    - job.submitted                          │          │
	│  │    - job.completed                          │          │
	│  │    - job.failed                             │          │
	│  │    - job.cancelled                          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Broker:
  - Central bus; owns the distribution goroutine and subscriber set
  - Publish is non-blocking (buffered channel) and stamps the
    timestamp when the caller left it zero
  - Stop closes the loop; publishes after Stop are dropped

Event:
  - ID: correlating identifier (job id where applicable)
  - Type: one of the typed constants above
  - Timestamp, Message, Metadata (key-value context such as alias
    and username)

Subscription:
  - A buffered channel, optionally restricted to named event types
  - Delivery is best-effort: a subscriber whose buffer is full misses
    the event rather than blocking the publisher

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	// Everything
	all := broker.Subscribe()

	// Only job outcomes
	jobEvents := broker.SubscribeTypes(events.EventJobCompleted, events.EventJobFailed)

	go func() {
		for event := range jobEvents {
			log.Info().Str("job_id", event.ID).Str("type", string(event.Type)).Msg("job finished")
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventRepoActivated,
		Metadata: map[string]string{"username": "alice", "user_alias": "hello"},
	})

	broker.Unsubscribe(jobEvents) // closes the channel; safe to repeat

# Integration Points

This package integrates with:

  - pkg/jobs: job.submitted/completed/failed/cancelled
  - pkg/golden: golden.registered/refreshed/removed
  - pkg/activated: repo.* and branch.switched
  - pkg/server: broker lifecycle (Start on boot, Stop on shutdown)

External log-aggregation and dashboard consumers are out of scope for
the core; they would subscribe exactly like the snippet above.

# Design Patterns

Fire-and-forget publish:
  - Emitters never wait on consumers; a slow subscriber degrades its
    own view, not the operation that published

Filters at the broker:
  - Type filtering happens in the broadcast loop, so subscribers
    with narrow interests pay no wakeups for events they ignore

Close-on-unsubscribe:
  - Unsubscribe closes the channel, turning subscriber range loops
    into clean shutdowns; double unsubscribe is a no-op

# Performance Characteristics

  - Publish is a buffered channel send: O(1), non-blocking while the
    broker buffer (100 events) has room; when it is full the publish
    blocks briefly until the loop drains or the broker stops
  - Broadcast is O(subscribers) per event under a read lock; the
    filter check is a map lookup
  - Subscribe/Unsubscribe take the write lock; both are rare compared
    to publishes

# Use Cases

Audit trail:
  - Subscribe to everything and write events to an audit sink; the
    metadata carries usernames and aliases

Cache invalidation:
  - Subscribe to golden.* and repo.* to drop derived caches when the
    underlying repositories change

Job watching:
  - SubscribeTypes(EventJobCompleted, EventJobFailed) plus the job id
    in Event.ID gives completion notification without polling Status

# Best Practices

  - Drain your channel promptly or size interests narrowly; a full
    subscriber buffer drops events for that subscriber only
  - Unsubscribe when done — the closed channel ends your range loop
    and frees the broker slot
  - Treat events as hints, not state: the managers remain the source
    of truth, and a dropped event must never leave a consumer wrong,
    only stale

# Limitations

  - In-memory only: events do not survive a restart and do not cross
    processes
  - No replay: a subscriber sees only events published after it
    subscribed
  - Best-effort: full buffers drop events silently by design

# See Also

  - pkg/jobs, pkg/golden, pkg/activated for the emitting sites
  - pkg/server for broker lifecycle wiring
*/
package events
