// Package memory is a slice-backed actionqueue.Queue for tests,
// grounded on the teacher's pkg/persistence/memory/memory.go
// (mutex-guarded, deep-copying, no durability).
package memory

import (
	"errors"
	"sync"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	"github.com/shieldnet/validator-core/pkg/types"
)

var errClosed = errors.New("actionqueue/memory: queue is closed")

// Queue is an in-memory, mutex-guarded FIFO. Data is lost on process
// exit; intended for tests only, matching the teacher's memory
// persistence's testing-only posture.
type Queue struct {
	mu      sync.Mutex
	entries []types.Action
	closed  bool
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(action types.Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}
	q.entries = append(q.entries, action)
	return nil
}

func (q *Queue) Peek() (*types.Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, errClosed
	}
	if len(q.entries) == 0 {
		return nil, actionqueue.ErrEmpty
	}
	head := q.entries[0]
	return &head, nil
}

func (q *Queue) Pop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}
	if len(q.entries) == 0 {
		return actionqueue.ErrEmpty
	}
	q.entries = q.entries[1:]
	return nil
}

func (q *Queue) Retry() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}
	if len(q.entries) == 0 {
		return actionqueue.ErrEmpty
	}
	q.entries[0].RetryCount++
	if q.entries[0].RetryCount > actionqueue.MaxRetries {
		q.entries = q.entries[1:]
		return actionqueue.ErrMaxRetriesExceeded
	}
	return nil
}

func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, errClosed
	}
	return len(q.entries), nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.entries = nil
	return nil
}
