package types

// RolloverStatus is the discriminant of the rollover sub-machine
// (spec.md §4.2 "State transitions (rollover sub-machine)").
type RolloverStatus string

const (
	RolloverWaiting                RolloverStatus = "waiting_for_rollover"
	RolloverCollectingCommitments  RolloverStatus = "collecting_commitments"
	RolloverCollectingShares       RolloverStatus = "collecting_shares"
	RolloverCollectingConfirmations RolloverStatus = "collecting_confirmations"
	RolloverSigning                RolloverStatus = "sign_rollover"
)

// RolloverState is the rollover sub-machine's variant record; which
// fields are meaningful depends on Status, matching spec.md §9's "sum
// types over class hierarchies" design note — a single tagged struct
// rather than a type hierarchy, dispatched by Status in pkg/statemachine.
type RolloverState struct {
	Status               RolloverStatus          `json:"status"`
	GroupID              [32]byte                `json:"groupId"`
	NextEpoch            uint64                  `json:"nextEpoch"`
	Deadline             uint64                  `json:"deadline"`
	ResponsibleValidator int                     `json:"responsibleValidator"`
	Commitments          map[int]KeyGenCommitment `json:"commitments,omitempty"`
	Shares               map[int]SecretShare      `json:"shares,omitempty"`
	ComplaintCounters    map[int]ComplaintCounter `json:"complaintCounters,omitempty"`
	Confirmations        map[int]bool            `json:"confirmations,omitempty"`
}

// SigningStatus is the discriminant of a per-message signing
// sub-machine (spec.md §3 MachineStates.signing).
type SigningStatus string

const (
	SigningWaitingForRequest       SigningStatus = "waiting_for_request"
	SigningCollectNonceCommitments SigningStatus = "collect_nonce_commitments"
	SigningCollectSigningShares    SigningStatus = "collect_signing_shares"
	SigningWaitingForAttestation   SigningStatus = "waiting_for_attestation"
)

// SigningEntry is one in-flight signing session's sub-machine state.
type SigningEntry struct {
	SignatureID      [32]byte           `json:"signatureId"`
	Status           SigningStatus      `json:"status"`
	Deadline         uint64             `json:"deadline"`
	Signers          []int              `json:"signers"`
	LastSeenSigner   int                `json:"lastSeenSigner"`
	ResponsibleParty int                `json:"responsibleParty"`
	NonceReveals     map[int]bool       `json:"nonceReveals,omitempty"`
	SignatureShares  map[int][]byte     `json:"signatureShares,omitempty"`
}

// MachineStates bundles the rollover sub-machine and every in-flight
// signing sub-machine, persisted as the machine_states table entries
// (spec.md §6 "Persisted state layout").
type MachineStates struct {
	Rollover RolloverState                  `json:"rollover"`
	Signing  map[[32]byte]SigningEntry      `json:"signing"`
}

// EpochGroup is ConsensusState.epochGroups' value type.
type EpochGroup struct {
	GroupID       [32]byte `json:"groupId"`
	ParticipantID int      `json:"participantId"`
}

// ConsensusState is the singleton mutable consensus record of
// spec.md §3.
type ConsensusState struct {
	ActiveEpoch          uint64                    `json:"activeEpoch"`
	StagedEpoch          uint64                    `json:"stagedEpoch"`
	GenesisGroupID       *[32]byte                 `json:"genesisGroupId,omitempty"`
	EpochGroups          map[uint64]EpochGroup     `json:"epochGroups"`
	GroupPendingNonces   map[[32]byte]bool         `json:"groupPendingNonces"`
	SignatureIDToMessage map[[32]byte][32]byte     `json:"signatureIdToMessage"`
}

// NewConsensusState returns a ConsensusState with its maps
// initialised, matching the zero-state a genesis driver run starts
// from.
func NewConsensusState() *ConsensusState {
	return &ConsensusState{
		EpochGroups:          make(map[uint64]EpochGroup),
		GroupPendingNonces:   make(map[[32]byte]bool),
		SignatureIDToMessage: make(map[[32]byte][32]byte),
	}
}

// Action is a single outbound coordinator call emitted by a handler
// and enqueued by the driver (spec.md §4.6 "actions?").
type Action struct {
	Kind       string                 `json:"kind"`
	Payload    map[string]interface{} `json:"payload"`
	RetryCount int                    `json:"retryCount"`
}

// ConsensusPatch is a sparse patch over ConsensusState: a field is
// touched only if present here, matching spec.md §4.6's "sparse patch
// of consensus-state fields".
type ConsensusPatch struct {
	ActiveEpoch             *uint64
	StagedEpoch             *uint64
	GenesisGroupID          *[32]byte
	EpochGroupSet           map[uint64]EpochGroup
	GroupPendingNoncesSet   map[[32]byte]bool
	SignatureIDToMessageSet map[[32]byte][32]byte
	SignatureIDToMessageDel [][32]byte
}

// StateDiff is the minimal change-set a pure event handler returns
// (spec.md §4.6).
type StateDiff struct {
	Rollover      *RolloverState
	SigningUpsert map[[32]byte]SigningEntry
	SigningDelete [][32]byte
	Consensus     ConsensusPatch
	Actions       []Action
}

// EventTransition is a single typed, ordered event surfaced by
// pkg/events from a raw coordinator log (spec.md §4.7). Fields beyond
// ID/Block/Index are a flexible envelope rather than one struct per
// event name: the fourteen event shapes share only a handful of field
// patterns (group/epoch/signature identifiers, commitment blobs,
// shares), so handlers in pkg/statemachine type-assert the specific
// fields they need out of Fields, the same way the teacher's
// blockHandler.HandleLog switches on a decoded log's event name before
// narrowing its argument struct.
type EventTransition struct {
	ID     string                 `json:"id"`
	Block  uint64                 `json:"block"`
	Index  uint64                 `json:"index"`
	Fields map[string]interface{} `json:"fields"`
}
