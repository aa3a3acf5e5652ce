// Package statemachine implements the rollover and per-message signing
// sub-machines of spec.md §3/§4.2/§4.3 as pure handlers over
// (config, state, event) -> StateDiff, dispatched by the incoming
// EventTransition's discriminant id — the same dispatch-by-discriminant
// shape as the teacher's node/handlers.go endpoint table, but as a pure
// function table instead of HTTP handlers, since this repo reacts to
// ordered on-chain log replay rather than peer HTTP pushes.
package statemachine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldnet/validator-core/pkg/events"
	"github.com/shieldnet/validator-core/pkg/types"
)

// Config carries the fixed, per-deployment parameters handlers consult.
// It never changes across a single driver run.
type Config struct {
	OwnParticipantID  int
	Count             int
	Threshold         int
	KeyGenTimeout     uint64 // in blocks
	SigningTimeout    uint64 // in blocks
}

// State is the read-only snapshot a handler observes: the consensus
// singleton plus every machine sub-state, exactly the shape
// pkg/storage's applyDiff persists.
type State struct {
	Consensus types.ConsensusState
	Machines  types.MachineStates
}

// Handler is a pure transition function. It must not mutate State or
// perform I/O; any outbound call is expressed as a types.Action for the
// driver to hand to the action queue.
type Handler func(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error)

// handlers is the dispatch table, keyed by events.Event* transition ids.
var handlers = map[string]Handler{
	events.EventKeyGenStart:              handleKeyGenStart,
	events.EventKeyGenCommitted:          handleKeyGenCommitted,
	events.EventKeyGenSecretShared:       handleKeyGenSecretShared,
	events.EventKeyGenComplaintSubmitted: handleComplaintSubmitted,
	events.EventKeyGenComplaintResponded: handleComplaintResponded,
	events.EventKeyGenConfirmed:          handleKeyGenConfirmed,
	events.EventSignRequest:              handleSignRequest,
	events.EventNonceCommitments:         handleNonceCommitments,
	events.EventSignatureShare:           handleSignatureShare,
	events.EventSigned:                   handleSigned,
	events.EventEpochProposed:            handleEpochProposed,
	events.EventEpochStaged:              handleEpochStaged,
	events.EventTransactionProposed:      handleTransactionProposed,
	events.EventTransactionAttested:      handleTransactionAttested,
}

// ErrUnknownTransition is returned by Apply for an id with no
// registered handler (spec.md §4.7 "unknown logs are ignored" applies
// at the decoder). The decoder does emit one id that has no handler
// here, events.EventNonceCommitmentsHash; the driver logs and skips
// events that fail this way.
type ErrUnknownTransition struct{ ID string }

func (e ErrUnknownTransition) Error() string {
	return fmt.Sprintf("statemachine: no handler registered for transition %q", e.ID)
}

// Apply dispatches event to its registered handler. Callers (pkg/driver)
// apply the resulting StateDiff through the storage facade atomically.
func Apply(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	h, ok := handlers[event.ID]
	if !ok {
		return types.StateDiff{}, ErrUnknownTransition{ID: event.ID}
	}
	return h(cfg, state, event)
}

// CheckDeadline is consulted by the driver before Apply on every event:
// a non-terminal rollover or signing entry whose deadline has passed
// aborts independently of what the next event is (spec.md §5
// "Cancellation and timeouts").
func CheckDeadline(state State, currentBlock uint64) types.StateDiff {
	diff := types.StateDiff{}

	r := state.Machines.Rollover
	if r.Status != "" && r.Status != types.RolloverWaiting && r.Deadline != 0 && currentBlock > r.Deadline {
		diff.Rollover = &types.RolloverState{Status: types.RolloverWaiting}
		if r.Status == types.RolloverSigning && state.Consensus.StagedEpoch > state.Consensus.ActiveEpoch {
			staged := state.Consensus.StagedEpoch
			diff.Consensus.ActiveEpoch = &staged
		}
	}

	var expired [][32]byte
	for sid, entry := range state.Machines.Signing {
		if entry.Status != types.SigningWaitingForAttestation && entry.Deadline != 0 && currentBlock > entry.Deadline {
			expired = append(expired, sid)
		}
	}
	if len(expired) > 0 {
		diff.SigningDelete = expired
	}
	return diff
}

// --- field-extraction helpers -------------------------------------------------

func fieldBytes32(fields map[string]interface{}, key string) ([32]byte, error) {
	var out [32]byte
	v, ok := fields[key]
	if !ok {
		return out, fmt.Errorf("statemachine: missing field %q", key)
	}
	b, ok := v.([32]byte)
	if !ok {
		return out, fmt.Errorf("statemachine: field %q is not bytes32 (got %T)", key, v)
	}
	return b, nil
}

func fieldBigInt(fields map[string]interface{}, key string) (*big.Int, error) {
	v, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("statemachine: missing field %q", key)
	}
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("statemachine: field %q is not uint256 (got %T)", key, v)
	}
	return b, nil
}

func fieldInt(fields map[string]interface{}, key string) (int, error) {
	b, err := fieldBigInt(fields, key)
	if err != nil {
		return 0, err
	}
	return int(b.Int64()), nil
}

func fieldBytes(fields map[string]interface{}, key string) ([]byte, error) {
	v, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("statemachine: missing field %q", key)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("statemachine: field %q is not bytes (got %T)", key, v)
	}
	return b, nil
}

func fieldBool(fields map[string]interface{}, key string) (bool, error) {
	v, ok := fields[key]
	if !ok {
		return false, fmt.Errorf("statemachine: missing field %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("statemachine: field %q is not bool (got %T)", key, v)
	}
	return b, nil
}

func fieldAddresses(fields map[string]interface{}, key string) ([]common.Address, error) {
	v, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("statemachine: missing field %q", key)
	}
	a, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("statemachine: field %q is not address[] (got %T)", key, v)
	}
	return a, nil
}

func copyRolloverMaps(src types.RolloverState) types.RolloverState {
	dst := src
	dst.Commitments = make(map[int]types.KeyGenCommitment, len(src.Commitments))
	for k, v := range src.Commitments {
		dst.Commitments[k] = v
	}
	dst.Shares = make(map[int]types.SecretShare, len(src.Shares))
	for k, v := range src.Shares {
		dst.Shares[k] = v
	}
	dst.ComplaintCounters = make(map[int]types.ComplaintCounter, len(src.ComplaintCounters))
	for k, v := range src.ComplaintCounters {
		dst.ComplaintCounters[k] = v
	}
	dst.Confirmations = make(map[int]bool, len(src.Confirmations))
	for k, v := range src.Confirmations {
		dst.Confirmations[k] = v
	}
	return dst
}
