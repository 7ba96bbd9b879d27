// Package queue defines the contract for enqueuing and consuming store writes.
package queue

import (
	"context"
	"fmt"
	"sync"
)

// Default queue configuration constants.
const (
	defaultBufferSize = 1024
)

// Task is one store write. Key is the natural key it touches; tasks with
// the same key must run in submission order.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// Queue provides blocking enqueue and channel-based dequeue semantics.
// Dropping a write would lose a record, so a full queue applies
// backpressure instead of rejecting.
type Queue interface {
	// Enqueue adds a task, waiting for room. It fails if the queue is
	// closed or ctx is done.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue returns the channel tasks are delivered on. It is closed when
	// the queue is closed and drained.
	Dequeue() <-chan Task

	// Len returns the current number of queued tasks.
	Len() int

	// Close stops accepting tasks. Queued tasks are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks      chan Task
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.bufferSize)
	return q
}

// Enqueue adds a task to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	// The read lock is held while blocked so Close cannot close the channel
	// under a pending send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", t.Key, ctx.Err())
	}
}

// Dequeue returns the task channel.
func (q *InMemoryQueue) Dequeue() <-chan Task {
	return q.tasks
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len() int {
	return len(q.tasks)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
