package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueAdminJobsDrainFirst(t *testing.T) {
	q := newPriorityQueue()

	q.push(&queueItem{jobID: "user-1", seq: 1})
	q.push(&queueItem{jobID: "user-2", seq: 2})
	q.push(&queueItem{jobID: "admin-1", admin: true, seq: 3})
	q.push(&queueItem{jobID: "admin-2", admin: true, seq: 4})

	var order []string
	for i := 0; i < 4; i++ {
		item, ok := q.pop()
		assert.True(t, ok)
		order = append(order, item.jobID)
	}

	assert.Equal(t, []string{"admin-1", "admin-2", "user-1", "user-2"}, order)
}

func TestQueueFIFOWithinClass(t *testing.T) {
	q := newPriorityQueue()
	for i := uint64(1); i <= 5; i++ {
		q.push(&queueItem{jobID: string(rune('a' + i - 1)), seq: i})
	}

	var order []string
	for i := 0; i < 5; i++ {
		item, _ := q.pop()
		order = append(order, item.jobID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := newPriorityQueue()
	q.push(&queueItem{jobID: "one", seq: 1})
	q.close()

	item, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, "one", item.jobID)

	_, ok = q.pop()
	assert.False(t, ok)

	// Pushes after close are ignored
	q.push(&queueItem{jobID: "late", seq: 2})
	assert.Zero(t, q.len())
}
