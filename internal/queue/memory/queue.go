// Package memory provides the bounded in-process task queue that links the
// agent's pacer to its scrape workers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"llmrank/internal/intel"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan intel.ScrapeTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan intel.ScrapeTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task intel.ScrapeTask) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (intel.ScrapeTask, error) {
	select {
	case <-ctx.Done():
		return intel.ScrapeTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return intel.ScrapeTask{}, errors.New("queue closed")
		}
		return task, nil
	}
}

// Len reports how many tasks are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
