package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator-core/pkg/types"
)

func TestApplyDiffUpdatesRolloverAndIsolatesCaller(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	gid := [32]byte{1}
	rollover := &types.RolloverState{Status: types.RolloverCollectingCommitments, GroupID: gid}
	_, err := s.ApplyDiff(types.StateDiff{Rollover: rollover})
	require.NoError(t, err)

	// Mutate the caller's copy after the call; the store must be
	// unaffected (deep copy on write).
	rollover.GroupID = [32]byte{9}

	loaded, err := s.MachineStates()
	require.NoError(t, err)
	require.Equal(t, gid, loaded.Rollover.GroupID)

	// Mutate the returned snapshot; a second read must be unaffected
	// (deep copy on read).
	loaded.Rollover.GroupID = [32]byte{9}
	reloaded, err := s.MachineStates()
	require.NoError(t, err)
	require.Equal(t, gid, reloaded.Rollover.GroupID)
}

func TestApplyDiffUpsertsAndDeletesSigningEntries(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	sid := [32]byte{2}
	_, err := s.ApplyDiff(types.StateDiff{
		SigningUpsert: map[[32]byte]types.SigningEntry{sid: {SignatureID: sid, Status: types.SigningCollectNonceCommitments}},
	})
	require.NoError(t, err)

	states, err := s.MachineStates()
	require.NoError(t, err)
	require.Contains(t, states.Signing, sid)

	_, err = s.ApplyDiff(types.StateDiff{SigningDelete: [][32]byte{sid}})
	require.NoError(t, err)

	states, err = s.MachineStates()
	require.NoError(t, err)
	require.NotContains(t, states.Signing, sid)
}

func TestApplyDiffPatchesConsensusState(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	staged := uint64(7)
	sid := [32]byte{3}
	msg := [32]byte{4}
	_, err := s.ApplyDiff(types.StateDiff{
		Consensus: types.ConsensusPatch{
			StagedEpoch:             &staged,
			SignatureIDToMessageSet: map[[32]byte][32]byte{sid: msg},
		},
	})
	require.NoError(t, err)

	cs, err := s.ConsensusState()
	require.NoError(t, err)
	require.Equal(t, staged, cs.StagedEpoch)
	require.Equal(t, msg, cs.SignatureIDToMessage[sid])
}

func TestApplyDiffReturnsActionsAndRejectsAfterClose(t *testing.T) {
	s := New()

	actions, err := s.ApplyDiff(types.StateDiff{Actions: []types.Action{{Kind: "consensus_propose_epoch"}}})
	require.NoError(t, err)
	require.Len(t, actions, 1)

	require.NoError(t, s.Close())
	_, err = s.ApplyDiff(types.StateDiff{})
	require.Error(t, err)
	require.Error(t, s.HealthCheck())
}
