// Package storage defines the persistence facade of spec.md §4.6: a
// single interface over the consensus singleton and the protocol
// sub-machine states, applied atomically, narrowed from the teacher's
// INodePersistence key-share/session verbs to this repo's
// consensusState/machineStates/applyDiff verbs while keeping the same
// close/health-check lifecycle shape.
package storage

import (
	"github.com/shieldnet/validator-core/pkg/types"
)

// Store is the persistence facade every driver depends on. Both
// backends (memory, badger) must apply a StateDiff atomically: on
// failure the prior state is unchanged.
type Store interface {
	// ConsensusState returns a snapshot of the singleton consensus
	// record.
	ConsensusState() (*types.ConsensusState, error)

	// MachineStates returns a snapshot of the rollover and signing
	// sub-machine states.
	MachineStates() (*types.MachineStates, error)

	// ApplyDiff persists diff atomically and returns the actions it
	// emitted, ready for the action queue.
	ApplyDiff(diff types.StateDiff) ([]types.Action, error)

	// Close cleanly shuts down the store. Idempotent.
	Close() error

	// HealthCheck verifies the store is operational.
	HealthCheck() error
}
