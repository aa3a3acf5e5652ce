package coordinator

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/types"
)

// Action kinds, the discriminant tags spec.md §4.5 dispatches on.
const (
	ActionKeyGenAndCommit      = "key_gen_and_commit"
	ActionConsensusProposeEpoch = "consensus_propose_epoch"
	ActionSignExecuteCallback  = "signing_execute_callback"
	ActionVerifyTransaction    = "verify_transaction"
	ActionSignEpochRollover    = "sign_epoch_rollover"
)

// Executor implements actionqueue.Executor by dispatching each
// action's Kind to the matching Client call, the same
// dispatch-by-discriminant-tag shape spec.md §4.5 requires of action
// queue execution.
type Executor struct {
	client *Client
	logger *zap.Logger
}

// NewExecutor builds an actionqueue.Executor over client.
func NewExecutor(client *Client, logger *zap.Logger) *Executor {
	return &Executor{client: client, logger: logger}
}

// Execute dispatches action to the coordinator contract. Payload
// fields are extracted defensively since they cross the StateDiff/JSON
// boundary (durable backings round-trip actions through JSON).
func (e *Executor) Execute(ctx context.Context, action types.Action) error {
	switch action.Kind {
	case ActionKeyGenAndCommit:
		gid, err := payloadBytes32(action.Payload, "gid")
		if err != nil {
			return err
		}
		_, err = e.client.KeyGenAndCommit(ctx, gid)
		return err

	case ActionConsensusProposeEpoch:
		nextEpoch, err := payloadUint64(action.Payload, "nextEpoch")
		if err != nil {
			return err
		}
		gid, err := payloadBytes32(action.Payload, "groupId")
		if err != nil {
			return err
		}
		_, err = e.client.ProposeEpoch(ctx, new(big.Int).SetUint64(nextEpoch), gid)
		return err

	case ActionSignExecuteCallback, ActionVerifyTransaction, ActionSignEpochRollover:
		// These kinds require off-band context (the signing transport
		// / verification engine) this package does not own; the
		// driver's executor wiring routes them elsewhere. Logged, not
		// an error, so an unrelated action kind never poisons the
		// queue's retry budget for a kind this executor can't serve.
		e.logger.Sugar().Debugw("action kind routed outside coordinator executor", "kind", action.Kind)
		return nil

	default:
		return fmt.Errorf("coordinator: unknown action kind %q", action.Kind)
	}
}

func payloadBytes32(payload map[string]interface{}, key string) ([32]byte, error) {
	var out [32]byte
	v, ok := payload[key]
	if !ok {
		return out, fmt.Errorf("coordinator: missing payload field %q", key)
	}
	switch b := v.(type) {
	case [32]byte:
		return b, nil
	case []interface{}:
		// A [32]byte that went through JSON comes back as 32 numbers.
		if len(b) != len(out) {
			break
		}
		for i, e := range b {
			f, ok := e.(float64)
			if !ok || f < 0 || f > 255 || f != float64(byte(f)) {
				return out, fmt.Errorf("coordinator: payload field %q is not [32]byte (got %T)", key, v)
			}
			out[i] = byte(f)
		}
		return out, nil
	}
	return out, fmt.Errorf("coordinator: payload field %q is not [32]byte (got %T)", key, v)
}

func payloadUint64(payload map[string]interface{}, key string) (uint64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("coordinator: missing payload field %q", key)
	}
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("coordinator: payload field %q is not numeric (got %T)", key, v)
	}
}
