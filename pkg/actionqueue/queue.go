// Package actionqueue implements the bounded-retry FIFO action queue
// of spec.md §4.5: the driver (producer) enqueues outbound coordinator
// calls, a single worker (consumer) executes the head entry, retrying
// on failure up to MAX_RETRIES before dropping it.
//
// Grounded on the teacher's pkg/transport/client.go RetryConfig /
// DefaultRetryConfig shape, adapted from an HTTP-call retry loop to a
// re-peek-with-delay loop over a persisted queue; spec.md pins a flat
// ERROR_RETRY_DELAY rather than the teacher's exponential backoff, so
// BackoffMultiple here is fixed at 1.0 (see DESIGN.md).
package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/types"
)

// MaxRetries and ErrorRetryDelay are the fixed constants of spec.md
// §4.5.
const (
	MaxRetries      = 5
	ErrorRetryDelay = 1 * time.Second
)

// RetryConfig mirrors the teacher's transport.RetryConfig shape. Only
// MaxAttempts and InitialBackoff are meaningful here: spec.md's retry
// policy is flat, not exponential, so MaxBackoff and BackoffMultiple
// are carried for shape-compatibility with the teacher's constructor
// but have no effect (BackoffMultiple == 1.0).
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig is spec.md §4.5's fixed retry policy.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     MaxRetries,
	InitialBackoff:  ErrorRetryDelay,
	MaxBackoff:      ErrorRetryDelay,
	BackoffMultiple: 1.0,
}

// ErrMaxRetriesExceeded is returned by the Retry call that takes an
// entry's retry count past MaxRetries (the (MaxRetries+1)th call); the
// entry is dropped as a side effect of that call.
var ErrMaxRetriesExceeded = errors.New("actionqueue: action dropped after exceeding max retries")

// ErrEmpty is returned by Peek when the queue has no entries.
var ErrEmpty = errors.New("actionqueue: queue is empty")

// Queue is the FIFO action queue interface implemented by both the
// memory and durable backings. Implementations MUST preserve
// first-in/first-out ordering across restart (spec.md §4.5).
type Queue interface {
	// Enqueue appends action to the tail of the queue.
	Enqueue(action types.Action) error

	// Peek returns the head entry without removing it, ErrEmpty if
	// the queue has no entries.
	Peek() (*types.Action, error)

	// Pop removes the head entry; called after successful execution.
	Pop() error

	// Retry increments the head entry's retryCount. If the new count
	// exceeds MaxRetries, the entry is dropped and
	// ErrMaxRetriesExceeded returned; otherwise the (still head)
	// entry's updated retryCount is returned via Peek.
	Retry() error

	// Len reports the number of entries currently queued.
	Len() (int, error)

	// Close releases any resources held by the backing store.
	Close() error
}

// Executor dispatches a single action to the coordinator, returning an
// error on transient failure (spec.md §7 "Transport/transient").
type Executor interface {
	Execute(ctx context.Context, action types.Action) error
}

// Worker drains a Queue by executing its head entry, popping on
// success and retrying with ErrorRetryDelay on failure, exactly the
// single-in-flight, FIFO-preserving discipline spec.md §4.5 requires.
type Worker struct {
	queue    Queue
	executor Executor
	logger   *zap.Logger
	delay    time.Duration
}

// NewWorker constructs a Worker with spec.md's fixed ErrorRetryDelay.
func NewWorker(queue Queue, executor Executor, logger *zap.Logger) *Worker {
	return &Worker{queue: queue, executor: executor, logger: logger, delay: ErrorRetryDelay}
}

// Run drains the queue until ctx is cancelled. There is at most one
// in-flight action at a time, matching spec.md §5's "serialised
// producer (driver) and consumer (action worker)".
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		action, err := w.queue.Peek()
		if errors.Is(err, ErrEmpty) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
				continue
			}
		}
		if err != nil {
			return fmt.Errorf("actionqueue: peeking head: %w", err)
		}

		if execErr := w.executor.Execute(ctx, *action); execErr != nil {
			w.logger.Sugar().Warnw("action execution failed, will retry", "kind", action.Kind, "retryCount", action.RetryCount, "error", execErr)

			if retryErr := w.queue.Retry(); retryErr != nil {
				if errors.Is(retryErr, ErrMaxRetriesExceeded) {
					w.logger.Sugar().Errorw("action dropped after max retries", "kind", action.Kind)
				} else {
					return fmt.Errorf("actionqueue: recording retry: %w", retryErr)
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
			}
			continue
		}

		if err := w.queue.Pop(); err != nil {
			return fmt.Errorf("actionqueue: popping completed action: %w", err)
		}
	}
}
