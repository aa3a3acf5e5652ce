package statemachine

import (
	"github.com/shieldnet/validator-core/pkg/types"
)

// handleKeyGenStart begins a DKG round, moving the rollover sub-machine
// from waiting_for_rollover to collecting_commitments (spec.md §4.2
// "State transitions").
func handleKeyGenStart(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	gid, err := fieldBytes32(event.Fields, "gid")
	if err != nil {
		return types.StateDiff{}, err
	}
	count, err := fieldInt(event.Fields, "count")
	if err != nil {
		return types.StateDiff{}, err
	}
	_ = count

	next := types.RolloverState{
		Status:            types.RolloverCollectingCommitments,
		GroupID:           gid,
		NextEpoch:         state.Consensus.StagedEpoch + 1,
		Deadline:          event.Block + cfg.KeyGenTimeout,
		Commitments:       make(map[int]types.KeyGenCommitment),
		Shares:            make(map[int]types.SecretShare),
		ComplaintCounters: make(map[int]types.ComplaintCounter),
		Confirmations:     make(map[int]bool),
	}

	return types.StateDiff{
		Rollover: &next,
		Actions: []types.Action{{
			Kind: "key_gen_and_commit",
			Payload: map[string]interface{}{
				"gid": gid,
			},
		}},
	}, nil
}

// handleKeyGenCommitted records one validator's Round-1 broadcast and
// advances to collecting_shares once every participant has committed.
func handleKeyGenCommitted(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	identifier, err := fieldInt(event.Fields, "identifier")
	if err != nil {
		return types.StateDiff{}, err
	}
	commitmentC, err := fieldBytes(event.Fields, "commitmentC")
	if err != nil {
		return types.StateDiff{}, err
	}
	commitmentR, err := fieldBytes(event.Fields, "commitmentR")
	if err != nil {
		return types.StateDiff{}, err
	}
	pokMu, err := fieldBytes32(event.Fields, "commitmentMu")
	if err != nil {
		return types.StateDiff{}, err
	}

	next := copyRolloverMaps(state.Machines.Rollover)
	next.Commitments[identifier] = types.KeyGenCommitment{
		ParticipantID: identifier,
		Commitments:   []types.CompressedPoint{{CompressedBytes: commitmentC}},
		PoKR:          types.CompressedPoint{CompressedBytes: commitmentR},
		PoKMu:         pokMu[:],
	}

	if len(next.Commitments) >= cfg.Count {
		next.Status = types.RolloverCollectingShares
		next.Deadline = event.Block + cfg.KeyGenTimeout
	}

	return types.StateDiff{Rollover: &next}, nil
}

// handleKeyGenSecretShared records a Round-2 dealt-share broadcast and
// advances to collecting_confirmations once every participant's shares
// are in (the complaint window of spec.md §4.2 runs concurrently via
// handleComplaintSubmitted/Responded, not as a separate status).
func handleKeyGenSecretShared(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	identifier, err := fieldInt(event.Fields, "identifier")
	if err != nil {
		return types.StateDiff{}, err
	}
	shareY, err := fieldBytes(event.Fields, "shareY")
	if err != nil {
		return types.StateDiff{}, err
	}

	next := copyRolloverMaps(state.Machines.Rollover)
	next.Shares[identifier] = types.SecretShare{FromID: identifier, ToID: cfg.OwnParticipantID, Share: shareY}

	if len(next.Shares) >= cfg.Count {
		next.Status = types.RolloverCollectingConfirmations
		next.Deadline = event.Block + cfg.KeyGenTimeout
	}

	return types.StateDiff{Rollover: &next}, nil
}

// handleComplaintSubmitted tallies a Round-3 complaint; once the
// accused has accumulated >= threshold complaints the DKG restarts
// (spec.md §4.2 "the DKG restarts with that validator excluded" — the
// exclusion list itself is out of this sub-machine's state and owned by
// the next key_gen_start's participant set).
func handleComplaintSubmitted(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	accused, err := fieldInt(event.Fields, "accused")
	if err != nil {
		return types.StateDiff{}, err
	}

	next := copyRolloverMaps(state.Machines.Rollover)
	c := next.ComplaintCounters[accused]
	c.Total++
	c.Unresponded++
	next.ComplaintCounters[accused] = c

	if c.Total >= cfg.Threshold {
		return types.StateDiff{Rollover: &types.RolloverState{Status: types.RolloverWaiting}}, nil
	}

	return types.StateDiff{Rollover: &next}, nil
}

// handleComplaintResponded clears one outstanding complaint response.
func handleComplaintResponded(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	accused, err := fieldInt(event.Fields, "accused")
	if err != nil {
		return types.StateDiff{}, err
	}

	next := copyRolloverMaps(state.Machines.Rollover)
	c := next.ComplaintCounters[accused]
	if c.Unresponded > 0 {
		c.Unresponded--
	}
	next.ComplaintCounters[accused] = c

	return types.StateDiff{Rollover: &next}, nil
}

// handleKeyGenConfirmed records a confirmation; once all participants
// have confirmed the group key is installed and the sub-machine moves
// to sign_rollover, emitting the action to propose the new epoch on
// consensus (spec.md §4.2 "Confirmation").
func handleKeyGenConfirmed(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	identifier, err := fieldInt(event.Fields, "identifier")
	if err != nil {
		return types.StateDiff{}, err
	}

	next := copyRolloverMaps(state.Machines.Rollover)
	next.Confirmations[identifier] = true

	diff := types.StateDiff{Rollover: &next}
	if len(next.Confirmations) >= cfg.Count {
		diff.Consensus = types.ConsensusPatch{
			EpochGroupSet: map[uint64]types.EpochGroup{
				next.NextEpoch: {GroupID: next.GroupID, ParticipantID: cfg.OwnParticipantID},
			},
		}
		next.Status = types.RolloverSigning
		next.Deadline = event.Block + cfg.SigningTimeout
		diff.Actions = []types.Action{{
			Kind: "consensus_propose_epoch",
			Payload: map[string]interface{}{
				"groupId":   next.GroupID,
				"nextEpoch": next.NextEpoch,
			},
		}}
	}
	return diff, nil
}

// handleSignRequest opens a new per-message signing sub-machine on a
// Sign event, the request that moves it past waiting_for_request
// (spec.md §4.3 "Round 1 (reveal)").
func handleSignRequest(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	sid, err := fieldBytes32(event.Fields, "sid")
	if err != nil {
		return types.StateDiff{}, err
	}
	message, err := fieldBytes32(event.Fields, "message")
	if err != nil {
		return types.StateDiff{}, err
	}

	signers := make([]int, cfg.Count)
	for i := range signers {
		signers[i] = i + 1
	}

	entry := types.SigningEntry{
		SignatureID:     sid,
		Status:          types.SigningCollectNonceCommitments,
		Deadline:        event.Block + cfg.SigningTimeout,
		Signers:         signers,
		NonceReveals:    make(map[int]bool),
		SignatureShares: make(map[int][]byte),
	}

	return types.StateDiff{
		SigningUpsert: map[[32]byte]types.SigningEntry{sid: entry},
		Consensus: types.ConsensusPatch{
			SignatureIDToMessageSet: map[[32]byte][32]byte{sid: message},
		},
	}, nil
}

// handleNonceCommitments records a signer's revealed (D,E) leaf and
// advances to collect_signing_shares once every listed signer has
// revealed (spec.md §4.3 "Round 1 (reveal)").
func handleNonceCommitments(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	sid, err := fieldBytes32(event.Fields, "sid")
	if err != nil {
		return types.StateDiff{}, err
	}
	identifier, err := fieldInt(event.Fields, "identifier")
	if err != nil {
		return types.StateDiff{}, err
	}

	entry, ok := state.Machines.Signing[sid]
	if !ok {
		return types.StateDiff{}, errUnknownSignature(sid)
	}
	entry = cloneSigningEntry(entry)
	entry.NonceReveals[identifier] = true
	entry.LastSeenSigner = identifier

	if len(entry.NonceReveals) >= len(entry.Signers) {
		entry.Status = types.SigningCollectSigningShares
	}

	return types.StateDiff{SigningUpsert: map[[32]byte]types.SigningEntry{sid: entry}}, nil
}

// handleSignatureShare records a published signature share (spec.md
// §4.3 "Round 2 (share)"); aggregation and the status transition happen
// on the coordinator's own SignCompleted event, handled below.
func handleSignatureShare(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	sid, err := fieldBytes32(event.Fields, "sid")
	if err != nil {
		return types.StateDiff{}, err
	}
	identifier, err := fieldInt(event.Fields, "identifier")
	if err != nil {
		return types.StateDiff{}, err
	}
	z, err := fieldBytes32(event.Fields, "z")
	if err != nil {
		return types.StateDiff{}, err
	}

	entry, ok := state.Machines.Signing[sid]
	if !ok {
		return types.StateDiff{}, errUnknownSignature(sid)
	}
	entry = cloneSigningEntry(entry)
	entry.SignatureShares[identifier] = z[:]
	entry.LastSeenSigner = identifier

	return types.StateDiff{SigningUpsert: map[[32]byte]types.SigningEntry{sid: entry}}, nil
}

// handleSigned moves a signing session to waiting_for_attestation and
// has the last-seen signer execute the session's callback (spec.md
// §4.3 "Aggregation").
func handleSigned(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	sid, err := fieldBytes32(event.Fields, "sid")
	if err != nil {
		return types.StateDiff{}, err
	}

	entry, ok := state.Machines.Signing[sid]
	if !ok {
		return types.StateDiff{}, errUnknownSignature(sid)
	}
	entry = cloneSigningEntry(entry)
	entry.Status = types.SigningWaitingForAttestation

	diff := types.StateDiff{SigningUpsert: map[[32]byte]types.SigningEntry{sid: entry}}
	if entry.LastSeenSigner == cfg.OwnParticipantID {
		diff.Actions = []types.Action{{
			Kind:    "signing_execute_callback",
			Payload: map[string]interface{}{"sid": sid},
		}}
	}
	return diff, nil
}

// handleEpochProposed requests a signature over the rollover packet;
// no persisted state changes beyond the action (spec.md §4.2
// "Confirmation" leads here via consensus_propose_epoch, then the
// consensus contract itself emits EpochProposed once quorum proposes).
func handleEpochProposed(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	return types.StateDiff{
		Actions: []types.Action{{
			Kind:    "sign_epoch_rollover",
			Payload: event.Fields,
		}},
	}, nil
}

// handleEpochStaged commits the staged epoch and schedules the
// rollover block as the rollover sub-machine's deadline; the actual
// activeEpoch flip happens once CheckDeadline observes the rollover
// block has passed (spec.md §5 "Cancellation and timeouts").
func handleEpochStaged(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	proposedEpoch, err := fieldInt(event.Fields, "proposedEpoch")
	if err != nil {
		return types.StateDiff{}, err
	}
	rolloverBlock, err := fieldInt(event.Fields, "rolloverBlock")
	if err != nil {
		return types.StateDiff{}, err
	}

	staged := uint64(proposedEpoch)
	next := copyRolloverMaps(state.Machines.Rollover)
	next.Deadline = uint64(rolloverBlock)

	return types.StateDiff{
		Rollover:  &next,
		Consensus: types.ConsensusPatch{StagedEpoch: &staged},
	}, nil
}

// handleTransactionProposed requests verification-then-signature for a
// proposed Safe transaction (spec.md §4.4 "SafeTransaction"); the
// actual signing sub-machine only opens once a Sign event for its
// message hash arrives, handled by handleSignRequest.
func handleTransactionProposed(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	txHash, err := fieldBytes32(event.Fields, "transactionHash")
	if err != nil {
		return types.StateDiff{}, err
	}

	return types.StateDiff{
		Actions: []types.Action{{
			Kind:    "verify_transaction",
			Payload: map[string]interface{}{"transactionHash": txHash, "fields": event.Fields},
		}},
	}, nil
}

// handleTransactionAttested tears down the signing sub-machine and its
// consensus bookkeeping for an attested message, finding the session's
// signature id through signatureIdToMessage (spec.md §4.3
// "per-message state machine ... -> (remove)").
func handleTransactionAttested(cfg Config, state State, event *types.EventTransition) (types.StateDiff, error) {
	message, err := fieldBytes32(event.Fields, "message")
	if err != nil {
		return types.StateDiff{}, err
	}

	var sids [][32]byte
	for sid, m := range state.Consensus.SignatureIDToMessage {
		if m == message {
			sids = append(sids, sid)
		}
	}

	return types.StateDiff{
		SigningDelete: sids,
		Consensus:     types.ConsensusPatch{SignatureIDToMessageDel: sids},
	}, nil
}

func cloneSigningEntry(e types.SigningEntry) types.SigningEntry {
	out := e
	out.NonceReveals = make(map[int]bool, len(e.NonceReveals))
	for k, v := range e.NonceReveals {
		out.NonceReveals[k] = v
	}
	out.SignatureShares = make(map[int][]byte, len(e.SignatureShares))
	for k, v := range e.SignatureShares {
		out.SignatureShares[k] = v
	}
	out.Signers = append([]int(nil), e.Signers...)
	return out
}

type errUnknownSignature [32]byte

func (e errUnknownSignature) Error() string {
	return "statemachine: no signing entry for signature id"
}
