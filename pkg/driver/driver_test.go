package driver

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/actionqueue/memory"
	"github.com/shieldnet/validator-core/pkg/events"
	"github.com/shieldnet/validator-core/pkg/statemachine"
	storagememory "github.com/shieldnet/validator-core/pkg/storage/memory"
	"github.com/shieldnet/validator-core/pkg/types"
)

func TestDriverAppliesEventsAndEnqueuesActions(t *testing.T) {
	store := storagememory.New()
	defer func() { _ = store.Close() }()
	queue := memory.New()
	cfg := statemachine.Config{OwnParticipantID: 1, Count: 3, Threshold: 2, KeyGenTimeout: 100, SigningTimeout: 50}

	d := New(cfg, store, queue, zap.NewNop(), func() uint64 { return 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	gid := [32]byte{1}
	event := &types.EventTransition{
		ID:    events.EventKeyGenStart,
		Block: 5,
		Fields: map[string]interface{}{
			"gid":          gid,
			"participants": nil,
			"count":        big.NewInt(3),
			"threshold":    big.NewInt(2),
			"context":      [32]byte{},
		},
	}
	require.NoError(t, d.Submit(ctx, event))

	require.Eventually(t, func() bool {
		n, err := queue.Len()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	states, err := store.MachineStates()
	require.NoError(t, err)
	require.Equal(t, types.RolloverCollectingCommitments, states.Rollover.Status)
	require.Equal(t, gid, states.Rollover.GroupID)

	cancel()
	require.NoError(t, <-done)
}

func TestDriverSkipsUnknownTransitionsWithoutError(t *testing.T) {
	store := storagememory.New()
	defer func() { _ = store.Close() }()
	queue := memory.New()
	cfg := statemachine.Config{Count: 3, Threshold: 2}
	d := New(cfg, store, queue, zap.NewNop(), func() uint64 { return 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, d.Submit(ctx, &types.EventTransition{ID: "not_a_real_transition"}))

	time.Sleep(50 * time.Millisecond)
	n, err := queue.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	cancel()
	require.NoError(t, <-done)
}
