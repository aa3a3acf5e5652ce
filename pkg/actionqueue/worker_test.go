package actionqueue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	"github.com/shieldnet/validator-core/pkg/actionqueue/memory"
	"github.com/shieldnet/validator-core/pkg/types"
	"github.com/stretchr/testify/require"
)

type countingExecutor struct {
	failFirstN int32
	calls      int32
}

func (e *countingExecutor) Execute(ctx context.Context, action types.Action) error {
	n := atomic.AddInt32(&e.calls, 1)
	if n <= e.failFirstN {
		return errors.New("transient failure")
	}
	return nil
}

func TestWorkerDrainsQueueOnEventualSuccess(t *testing.T) {
	q := memory.New()
	require.NoError(t, q.Enqueue(types.Action{Kind: "consensus_stage_epoch"}))

	exec := &countingExecutor{failFirstN: 2}
	worker := actionqueue.NewWorker(q, exec, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := q.Len()
		return err == nil && n == 0
	}, 4*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
