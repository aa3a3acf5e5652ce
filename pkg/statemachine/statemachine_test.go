package statemachine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator-core/pkg/events"
	"github.com/shieldnet/validator-core/pkg/types"
)

func baseConfig() Config {
	return Config{
		OwnParticipantID: 1,
		Count:            3,
		Threshold:        2,
		KeyGenTimeout:    100,
		SigningTimeout:   50,
	}
}

func TestKeyGenStartOpensCommittingPhase(t *testing.T) {
	cfg := baseConfig()
	state := State{Machines: types.MachineStates{Rollover: types.RolloverState{Status: types.RolloverWaiting}}}

	gid := [32]byte{1, 2, 3}
	event := &types.EventTransition{
		ID:    events.EventKeyGenStart,
		Block: 10,
		Fields: map[string]interface{}{
			"gid":          gid,
			"participants": []common.Address{},
			"count":        big.NewInt(3),
			"threshold":    big.NewInt(2),
			"context":      [32]byte{},
		},
	}

	diff, err := Apply(cfg, state, event)
	require.NoError(t, err)
	require.NotNil(t, diff.Rollover)
	require.Equal(t, types.RolloverCollectingCommitments, diff.Rollover.Status)
	require.Equal(t, gid, diff.Rollover.GroupID)
	require.Equal(t, uint64(110), diff.Rollover.Deadline)
	require.Len(t, diff.Actions, 1)
	require.Equal(t, "key_gen_and_commit", diff.Actions[0].Kind)
}

func TestKeyGenCommittedAdvancesAtCount(t *testing.T) {
	cfg := baseConfig()
	rollover := types.RolloverState{
		Status:            types.RolloverCollectingCommitments,
		Commitments:       map[int]types.KeyGenCommitment{1: {}, 2: {}},
		Shares:            map[int]types.SecretShare{},
		ComplaintCounters: map[int]types.ComplaintCounter{},
		Confirmations:     map[int]bool{},
	}
	state := State{Machines: types.MachineStates{Rollover: rollover}}

	event := &types.EventTransition{
		ID:    events.EventKeyGenCommitted,
		Block: 20,
		Fields: map[string]interface{}{
			"identifier":   big.NewInt(3),
			"commitmentC":  []byte{0xaa},
			"commitmentR":  []byte{0xbb},
			"commitmentMu": [32]byte{0xcc},
			"committed":    true,
		},
	}

	diff, err := Apply(cfg, state, event)
	require.NoError(t, err)
	require.Len(t, diff.Rollover.Commitments, 3)
	require.Equal(t, types.RolloverCollectingShares, diff.Rollover.Status)
}

func TestComplaintSubmittedRestartsAtThreshold(t *testing.T) {
	cfg := baseConfig() // threshold = 2
	rollover := types.RolloverState{
		Status:            types.RolloverCollectingShares,
		Commitments:       map[int]types.KeyGenCommitment{},
		Shares:            map[int]types.SecretShare{},
		ComplaintCounters: map[int]types.ComplaintCounter{5: {Total: 1, Unresponded: 1}},
		Confirmations:     map[int]bool{},
	}
	state := State{Machines: types.MachineStates{Rollover: rollover}}

	event := &types.EventTransition{
		ID: events.EventKeyGenComplaintSubmitted,
		Fields: map[string]interface{}{
			"plaintiff": big.NewInt(2),
			"accused":   big.NewInt(5),
		},
	}

	diff, err := Apply(cfg, state, event)
	require.NoError(t, err)
	require.Equal(t, types.RolloverWaiting, diff.Rollover.Status)
}

func TestKeyGenConfirmedInstallsGroupKeyAtCount(t *testing.T) {
	cfg := baseConfig()
	rollover := types.RolloverState{
		Status:            types.RolloverCollectingConfirmations,
		GroupID:           [32]byte{9},
		NextEpoch:         7,
		Commitments:       map[int]types.KeyGenCommitment{},
		Shares:            map[int]types.SecretShare{},
		ComplaintCounters: map[int]types.ComplaintCounter{},
		Confirmations:     map[int]bool{1: true, 2: true},
	}
	state := State{Machines: types.MachineStates{Rollover: rollover}}

	event := &types.EventTransition{
		ID:    events.EventKeyGenConfirmed,
		Block: 30,
		Fields: map[string]interface{}{
			"identifier": big.NewInt(3),
		},
	}

	diff, err := Apply(cfg, state, event)
	require.NoError(t, err)
	require.Equal(t, types.RolloverSigning, diff.Rollover.Status)
	require.Len(t, diff.Actions, 1)
	require.Equal(t, "consensus_propose_epoch", diff.Actions[0].Kind)
	require.Equal(t, types.EpochGroup{GroupID: [32]byte{9}, ParticipantID: 1}, diff.Consensus.EpochGroupSet[7])
}

func TestSigningLifecycleFromRequestToAttested(t *testing.T) {
	cfg := baseConfig()
	sid := [32]byte{0x11}
	message := [32]byte{0x22}

	// Sign event opens the sub-machine.
	state := State{Machines: types.MachineStates{Signing: map[[32]byte]types.SigningEntry{}}}
	openEvent := &types.EventTransition{
		ID:    events.EventSignRequest,
		Block: 5,
		Fields: map[string]interface{}{
			"initiator": common.Address{},
			"gid":       [32]byte{},
			"message":   message,
			"sid":       sid,
			"sequence":  big.NewInt(1),
		},
	}
	diff, err := Apply(cfg, state, openEvent)
	require.NoError(t, err)
	entry := diff.SigningUpsert[sid]
	require.Equal(t, types.SigningCollectNonceCommitments, entry.Status)
	require.Equal(t, message, diff.Consensus.SignatureIDToMessageSet[sid])

	state.Machines.Signing[sid] = entry
	state.Consensus.SignatureIDToMessage = diff.Consensus.SignatureIDToMessageSet

	// Each signer reveals nonces; the last reveal advances the status.
	for _, id := range entry.Signers {
		revealEvent := &types.EventTransition{
			ID: events.EventNonceCommitments,
			Fields: map[string]interface{}{
				"sid":        sid,
				"identifier": big.NewInt(int64(id)),
				"nonceD":     []byte{0x01},
				"nonceE":     []byte{0x02},
			},
		}
		diff, err = Apply(cfg, state, revealEvent)
		require.NoError(t, err)
		state.Machines.Signing[sid] = diff.SigningUpsert[sid]
	}
	require.Equal(t, types.SigningCollectSigningShares, state.Machines.Signing[sid].Status)

	// A signature share arrives; status is unchanged until SignCompleted.
	shareEvent := &types.EventTransition{
		ID: events.EventSignatureShare,
		Fields: map[string]interface{}{
			"sid":        sid,
			"identifier": big.NewInt(1),
			"z":          [32]byte{0x33},
			"root":       [32]byte{0x44},
		},
	}
	diff, err = Apply(cfg, state, shareEvent)
	require.NoError(t, err)
	state.Machines.Signing[sid] = diff.SigningUpsert[sid]
	require.Equal(t, types.SigningCollectSigningShares, state.Machines.Signing[sid].Status)
	require.Equal(t, 1, state.Machines.Signing[sid].LastSeenSigner)

	// SignCompleted moves the session to waiting_for_attestation and the
	// last-seen signer (participant 1, our own id) executes the callback.
	completedEvent := &types.EventTransition{
		ID: events.EventSigned,
		Fields: map[string]interface{}{
			"sid":        sid,
			"signatureR": [32]byte{0x55},
			"signatureZ": [32]byte{0x66},
		},
	}
	diff, err = Apply(cfg, state, completedEvent)
	require.NoError(t, err)
	require.Equal(t, types.SigningWaitingForAttestation, diff.SigningUpsert[sid].Status)
	require.Len(t, diff.Actions, 1)
	require.Equal(t, "signing_execute_callback", diff.Actions[0].Kind)

	// TransactionAttested removes the entry entirely.
	attestedEvent := &types.EventTransition{
		ID:     events.EventTransactionAttested,
		Fields: map[string]interface{}{"message": message},
	}
	diff, err = Apply(cfg, state, attestedEvent)
	require.NoError(t, err)
	require.Equal(t, [][32]byte{sid}, diff.SigningDelete)
}

func TestApplyUnknownTransitionErrors(t *testing.T) {
	_, err := Apply(baseConfig(), State{}, &types.EventTransition{ID: "bogus"})
	require.Error(t, err)
}

func TestCheckDeadlineAbortsExpiredRollover(t *testing.T) {
	state := State{Machines: types.MachineStates{
		Rollover: types.RolloverState{Status: types.RolloverCollectingShares, Deadline: 100},
	}}
	diff := CheckDeadline(state, 150)
	require.NotNil(t, diff.Rollover)
	require.Equal(t, types.RolloverWaiting, diff.Rollover.Status)
}

func TestCheckDeadlineExpiresSigningEntry(t *testing.T) {
	sid := [32]byte{0x77}
	state := State{Machines: types.MachineStates{
		Signing: map[[32]byte]types.SigningEntry{
			sid: {Status: types.SigningCollectNonceCommitments, Deadline: 10},
		},
	}}
	diff := CheckDeadline(state, 50)
	require.Equal(t, [][32]byte{sid}, diff.SigningDelete)
}
