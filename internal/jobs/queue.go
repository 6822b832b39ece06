// Package jobs provides the in-memory work queue, the worker pool that
// drains it, and the producers that turn API requests into task runs.
package jobs

import (
	"context"

	"github.com/kimhsiao/photosync/internal/apperr"
)

// DefaultQueueCapacity bounds the queue when no capacity is configured.
const DefaultQueueCapacity = 100

// WorkItem is one unit of deferred work. The body runs on exactly one worker;
// TaskID names the task record the worker closes out if the body fails.
type WorkItem struct {
	TaskID string
	Run    func(ctx context.Context) error
}

// Queue is a bounded FIFO hand-off between producers and workers. Enqueue
// blocks once the capacity is reached, which is deliberate backpressure:
// producers cannot grow memory without bound. The queue never inspects,
// retries or reorders items.
type Queue struct {
	items chan WorkItem
}

// NewQueue creates a queue with the given capacity (DefaultQueueCapacity
// when capacity < 1).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{items: make(chan WorkItem, capacity)}
}

// Enqueue admits an item, blocking while the queue is full. It fails with
// ErrInvalidArgument for an empty item and ErrCancelled when ctx fires
// before space frees up.
func (q *Queue) Enqueue(ctx context.Context, item WorkItem) error {
	if item.Run == nil {
		return apperr.Invalid("work item has no body")
	}
	select {
	case q.items <- item:
		queueDepth.Inc()
		return nil
	case <-ctx.Done():
		return apperr.Wrap(apperr.ErrCancelled, "enqueue")
	}
}

// Dequeue removes and returns the oldest item, blocking until one is
// available. It fails with ErrCancelled when ctx fires first.
func (q *Queue) Dequeue(ctx context.Context) (WorkItem, error) {
	select {
	case item := <-q.items:
		queueDepth.Dec()
		return item, nil
	case <-ctx.Done():
		return WorkItem{}, apperr.Wrap(apperr.ErrCancelled, "dequeue")
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
