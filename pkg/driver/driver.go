// Package driver is the validator's single cooperative event loop:
// pull ordered EventTransitions off a channel, apply each to the
// protocol state machine, persist the resulting diff, and hand emitted
// actions to the action queue. Grounded on the teacher's
// pkg/blockHandler/blockHandler.go ListenToChannel select-loop over a
// buffered channel with context cancellation, adapted from "one block
// at a time" to "one ordered EventTransition at a time". Neither the
// driver nor its channel producer holds back a reorg-depth window:
// events are applied as soon as they are submitted, up to the latest
// block.
package driver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	"github.com/shieldnet/validator-core/pkg/statemachine"
	"github.com/shieldnet/validator-core/pkg/storage"
	"github.com/shieldnet/validator-core/pkg/types"
)

// eventChannelCapacity mirrors the teacher's BlockHandler's 100-block
// buffer, sized here for bursts of same-block log events rather than
// blocks.
const eventChannelCapacity = 256

// Driver owns the single-writer event channel and applies every event
// it receives to the state machine and storage facade in strict
// arrival order (spec.md §5 "single-threaded cooperative").
type Driver struct {
	cfg          statemachine.Config
	store        storage.Store
	queue        actionqueue.Queue
	logger       *zap.Logger
	eventChannel chan *types.EventTransition
	blockHeight  func() uint64
}

// New constructs a Driver. blockHeight reports the current block
// height (cmd/validator passes the latest block number), consulted before every apply to enforce deadline
// expiry (statemachine.CheckDeadline).
func New(cfg statemachine.Config, store storage.Store, queue actionqueue.Queue, logger *zap.Logger, blockHeight func() uint64) *Driver {
	return &Driver{
		cfg:          cfg,
		store:        store,
		queue:        queue,
		logger:       logger,
		eventChannel: make(chan *types.EventTransition, eventChannelCapacity),
		blockHeight:  blockHeight,
	}
}

// Submit enqueues a single ordered event for processing. Callers
// (pkg/events + the chain poller) must submit in (block, index) order;
// the driver does not re-sort across Submit calls.
func (d *Driver) Submit(ctx context.Context, event *types.EventTransition) error {
	select {
	case d.eventChannel <- event:
		d.logger.Sugar().Debugw("event submitted to driver", "id", event.ID, "block", event.Block, "index", event.Index)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		d.logger.Sugar().Warnw("driver event channel is full, dropping event", "id", event.ID, "block", event.Block)
		return fmt.Errorf("driver: event channel full")
	}
}

// Run drains the event channel until ctx is cancelled, the same
// select-over-channel-or-ctx.Done shape as the teacher's
// BlockHandler.ListenToChannel.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case event := <-d.eventChannel:
			if err := d.handle(ctx, event); err != nil {
				return fmt.Errorf("driver: handling event %q at block %d: %w", event.ID, event.Block, err)
			}
		case <-ctx.Done():
			d.logger.Sugar().Info("driver event loop exiting due to context done")
			return nil
		}
	}
}

// ProbeDeadline runs a single deadline check against the current
// stored state without waiting for an inbound event, the mechanism
// behind --auto-rollover-probe: an operator can force an immediate
// check for a due rollover or expired signing session on startup
// rather than waiting for the next on-chain log.
func (d *Driver) ProbeDeadline(ctx context.Context) error {
	consensus, err := d.store.ConsensusState()
	if err != nil {
		return fmt.Errorf("loading consensus state: %w", err)
	}
	machines, err := d.store.MachineStates()
	if err != nil {
		return fmt.Errorf("loading machine states: %w", err)
	}
	state := statemachine.State{Consensus: *consensus, Machines: *machines}

	height := d.blockHeight()
	if height == 0 {
		return nil
	}

	diff := statemachine.CheckDeadline(state, height)
	if diff.Rollover == nil && len(diff.SigningDelete) == 0 {
		d.logger.Sugar().Debugw("auto-rollover probe found nothing due", "block", height)
		return nil
	}
	return d.drainDiff(diff)
}

func (d *Driver) handle(ctx context.Context, event *types.EventTransition) error {
	consensus, err := d.store.ConsensusState()
	if err != nil {
		return fmt.Errorf("loading consensus state: %w", err)
	}
	machines, err := d.store.MachineStates()
	if err != nil {
		return fmt.Errorf("loading machine states: %w", err)
	}
	state := statemachine.State{Consensus: *consensus, Machines: *machines}

	if height := d.blockHeight(); height > 0 {
		if deadlineDiff := statemachine.CheckDeadline(state, height); deadlineDiff.Rollover != nil || len(deadlineDiff.SigningDelete) > 0 {
			if err := d.drainDiff(deadlineDiff); err != nil {
				return fmt.Errorf("applying deadline diff: %w", err)
			}
			machines, err = d.store.MachineStates()
			if err != nil {
				return fmt.Errorf("reloading machine states after deadline check: %w", err)
			}
			state.Machines = *machines
		}
	}

	diff, err := statemachine.Apply(d.cfg, state, event)
	if err != nil {
		var unknown statemachine.ErrUnknownTransition
		if errors.As(err, &unknown) {
			d.logger.Sugar().Warnw("no handler for transition, skipping", "id", event.ID)
			return nil
		}
		return fmt.Errorf("applying transition %q: %w", event.ID, err)
	}

	return d.drainDiff(diff)
}

func (d *Driver) drainDiff(diff types.StateDiff) error {
	actions, err := d.store.ApplyDiff(diff)
	if err != nil {
		return fmt.Errorf("persisting state diff: %w", err)
	}
	for _, action := range actions {
		if err := d.queue.Enqueue(action); err != nil {
			return fmt.Errorf("enqueuing action %q: %w", action.Kind, err)
		}
	}
	return nil
}
