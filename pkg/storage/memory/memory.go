// Package memory is an in-memory Store implementation for tests,
// grounded verbatim on the teacher's pkg/persistence/memory/memory.go:
// mutex-guarded, deep-copying on every read/write, and printing the
// same loud "data will be lost" startup warning.
package memory

import (
	"fmt"
	"sync"

	"github.com/shieldnet/validator-core/pkg/types"
)

// Store is a mutex-guarded, deep-copying, non-durable Store. Intended
// for tests only.
type Store struct {
	mu        sync.RWMutex
	consensus types.ConsensusState
	machines  types.MachineStates
	closed    bool
}

// New creates an in-memory Store. Prints a loud warning since this
// should only be used for testing, matching the teacher's
// NewMemoryPersistence.
func New() *Store {
	fmt.Println("WARNING: using in-memory storage - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("WARNING: this should ONLY be used for testing; set --storage-type=badger (VALIDATOR_STORAGE_TYPE) for production")

	return &Store{
		consensus: *types.NewConsensusState(),
		machines: types.MachineStates{
			Rollover: types.RolloverState{Status: types.RolloverWaiting},
			Signing:  make(map[[32]byte]types.SigningEntry),
		},
	}
}

func (s *Store) ConsensusState() (*types.ConsensusState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	return deepCopyConsensus(&s.consensus), nil
}

func (s *Store) MachineStates() (*types.MachineStates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	return deepCopyMachines(&s.machines), nil
}

func (s *Store) ApplyDiff(diff types.StateDiff) ([]types.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}

	if diff.Rollover != nil {
		s.machines.Rollover = *deepCopyRollover(diff.Rollover)
	}
	for sid, entry := range diff.SigningUpsert {
		s.machines.Signing[sid] = *deepCopySigningEntry(&entry)
	}
	for _, sid := range diff.SigningDelete {
		delete(s.machines.Signing, sid)
	}

	if diff.Consensus.ActiveEpoch != nil {
		s.consensus.ActiveEpoch = *diff.Consensus.ActiveEpoch
	}
	if diff.Consensus.StagedEpoch != nil {
		s.consensus.StagedEpoch = *diff.Consensus.StagedEpoch
	}
	if diff.Consensus.GenesisGroupID != nil {
		id := *diff.Consensus.GenesisGroupID
		s.consensus.GenesisGroupID = &id
	}
	for epoch, group := range diff.Consensus.EpochGroupSet {
		s.consensus.EpochGroups[epoch] = group
	}
	for gid, pending := range diff.Consensus.GroupPendingNoncesSet {
		s.consensus.GroupPendingNonces[gid] = pending
	}
	for sid, msg := range diff.Consensus.SignatureIDToMessageSet {
		s.consensus.SignatureIDToMessage[sid] = msg
	}
	for _, sid := range diff.Consensus.SignatureIDToMessageDel {
		delete(s.consensus.SignatureIDToMessage, sid)
	}

	actions := make([]types.Action, len(diff.Actions))
	copy(actions, diff.Actions)
	return actions, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

var errClosed = fmt.Errorf("storage/memory: store is closed")

func deepCopyRollover(r *types.RolloverState) *types.RolloverState {
	out := *r
	out.Commitments = make(map[int]types.KeyGenCommitment, len(r.Commitments))
	for k, v := range r.Commitments {
		out.Commitments[k] = v
	}
	out.Shares = make(map[int]types.SecretShare, len(r.Shares))
	for k, v := range r.Shares {
		out.Shares[k] = v
	}
	out.ComplaintCounters = make(map[int]types.ComplaintCounter, len(r.ComplaintCounters))
	for k, v := range r.ComplaintCounters {
		out.ComplaintCounters[k] = v
	}
	out.Confirmations = make(map[int]bool, len(r.Confirmations))
	for k, v := range r.Confirmations {
		out.Confirmations[k] = v
	}
	return &out
}

func deepCopySigningEntry(e *types.SigningEntry) *types.SigningEntry {
	out := *e
	out.Signers = append([]int(nil), e.Signers...)
	out.NonceReveals = make(map[int]bool, len(e.NonceReveals))
	for k, v := range e.NonceReveals {
		out.NonceReveals[k] = v
	}
	out.SignatureShares = make(map[int][]byte, len(e.SignatureShares))
	for k, v := range e.SignatureShares {
		cp := append([]byte(nil), v...)
		out.SignatureShares[k] = cp
	}
	return &out
}

func deepCopyMachines(m *types.MachineStates) *types.MachineStates {
	out := types.MachineStates{
		Rollover: *deepCopyRollover(&m.Rollover),
		Signing:  make(map[[32]byte]types.SigningEntry, len(m.Signing)),
	}
	for sid, entry := range m.Signing {
		out.Signing[sid] = *deepCopySigningEntry(&entry)
	}
	return &out
}

func deepCopyConsensus(c *types.ConsensusState) *types.ConsensusState {
	out := *c
	if c.GenesisGroupID != nil {
		id := *c.GenesisGroupID
		out.GenesisGroupID = &id
	}
	out.EpochGroups = make(map[uint64]types.EpochGroup, len(c.EpochGroups))
	for k, v := range c.EpochGroups {
		out.EpochGroups[k] = v
	}
	out.GroupPendingNonces = make(map[[32]byte]bool, len(c.GroupPendingNonces))
	for k, v := range c.GroupPendingNonces {
		out.GroupPendingNonces[k] = v
	}
	out.SignatureIDToMessage = make(map[[32]byte][32]byte, len(c.SignatureIDToMessage))
	for k, v := range c.SignatureIDToMessage {
		out.SignatureIDToMessage[k] = v
	}
	return &out
}
