// Package types holds the shared data-model structures of the validator
// core: participants, groups, and the per-session crypto artifacts that
// flow between the FROST engine, the state machine, and storage.
package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Participant is a committee member. IDs are 1-based and assigned
// positionally from the configured participant list; they are never
// derived from the address.
type Participant struct {
	ID      int            `json:"id"`
	Address common.Address `json:"address"`
}

// Group describes a committee's key-generation context for one epoch.
type Group struct {
	GroupID          [32]byte `json:"groupId"`
	ParticipantsRoot [32]byte `json:"participantsRoot"`
	Count            int      `json:"count"`
	Threshold        int      `json:"threshold"`
	Context          [32]byte `json:"context"`
}

// Threshold computes floor(count/2)+1.
func Threshold(count int) int {
	return count/2 + 1
}

// CompressedPoint is the compressed byte form of a curve point as it is
// stored in persisted state; in memory, points live in pkg/curve.Point
// on secp256k1.
type CompressedPoint struct {
	CompressedBytes []byte `json:"compressedBytes"`
}

// KeyGenCommitment is a single validator's Round-1 DKG broadcast.
type KeyGenCommitment struct {
	ParticipantID int               `json:"participantId"`
	Commitments   []CompressedPoint `json:"commitments"` // C_0 .. C_{t-1}
	PoKR          CompressedPoint   `json:"pokR"`
	PoKMu         []byte            `json:"pokMu"` // scalar, big-endian 32 bytes
}

// SecretShare is a Round-2 dealt share, transported out of band; only
// its commitment-checkable shape is modeled here (the scalar itself is
// never persisted in clear by this package's callers outside the DKG
// engine's own process memory).
type SecretShare struct {
	FromID int    `json:"fromId"`
	ToID   int    `json:"toId"`
	Share  []byte `json:"share"` // scalar, big-endian 32 bytes
}

// Complaint tracks a Round-3 dispute.
type Complaint struct {
	Plaintiff int `json:"plaintiff"`
	Accused   int `json:"accused"`
}

// ComplaintCounter is the per-accused tally referenced by spec.md §4.2.
type ComplaintCounter struct {
	Total      int `json:"total"`
	Unresponded int `json:"unresponded"`
}

// GroupKeyMaterial is the frozen, per-validator output of a completed DKG.
type GroupKeyMaterial struct {
	GroupID            [32]byte          `json:"groupId"`
	ParticipantID      int               `json:"participantId"`
	OwnCommitments     []CompressedPoint `json:"ownCommitments"`
	PeerCommitments    map[int][]CompressedPoint `json:"peerCommitments"`
	OwnSecretShare     []byte            `json:"ownSecretShare"` // scalar, sum of received shares
	VerificationShares map[int]CompressedPoint  `json:"verificationShares"`
	GroupPublicKey     CompressedPoint   `json:"groupPublicKey"`
}

// NonceTree metadata persisted alongside its leaves; the leaves
// themselves (the d_i, e_i scalars) live only in the frost engine's
// in-memory seed-derived regeneration, never in the storage facade.
type NonceTreeState struct {
	GroupID    [32]byte `json:"groupId"`
	Root       [32]byte `json:"root"`
	Chunk      int      `json:"chunk"`
	Offset     int      `json:"offset"`
	TotalUsed  int      `json:"totalUsed"`
}

// SignatureSession is the mutable per-signatureId bookkeeping of spec.md §3.
type SignatureSession struct {
	SignatureID      [32]byte        `json:"signatureId"`
	GroupID          [32]byte        `json:"groupId"`
	MessageHash      [32]byte        `json:"messageHash"`
	Signers          []int           `json:"signers"`
	BindingFactors   map[int][]byte  `json:"bindingFactors"`
	GroupCommitment  CompressedPoint `json:"groupCommitment"`
	SignerCommitments map[int]CompressedPoint `json:"signerCommitments"`
	LagrangeCoeffs   map[int][]byte  `json:"lagrangeCoeffs"`
	SignatureShares  map[int][]byte  `json:"signatureShares"`
	AggregatedZ      []byte          `json:"aggregatedZ"`
	Status           string          `json:"status"`
}
