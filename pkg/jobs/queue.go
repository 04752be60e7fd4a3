package jobs

import (
	"container/heap"
	"sync"
)

// queueItem is one dispatchable job. Admin jobs drain before user jobs;
// within a class, dispatch is FIFO by submission sequence.
type queueItem struct {
	jobID string
	body  Body
	admin bool
	seq   uint64
}

type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].admin != h[j].admin {
		return h[i].admin
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// priorityQueue is a blocking two-class priority queue
type priorityQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	closed bool
}

func newPriorityQueue() *priorityQueue {
	q := &priorityQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues an item; no-op after close
func (q *priorityQueue) push(item *queueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	heap.Push(&q.items, item)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed. The
// second return value is false once the queue is closed and drained.
func (q *priorityQueue) pop() (*queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*queueItem), true
}

// close wakes all waiters; queued items are still drained
func (q *priorityQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *priorityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
