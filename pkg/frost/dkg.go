package frost

import (
	"crypto/rand"
	"fmt"

	"github.com/shieldnet/validator-core/pkg/curve"
)

// Round1Output is a single validator's DKG Round-1 broadcast: the
// Feldman VSS commitments to its polynomial, plus a Schnorr
// proof-of-knowledge of the constant term a_0.
type Round1Output struct {
	ParticipantID int
	Commitments   []*curve.Point
	PoKR          *curve.Point
	PoKMu         *curve.Scalar
}

// GenerateRound1 samples a degree-(threshold-1) polynomial, publishes
// its Feldman commitments, and proves knowledge of a_0 via a Schnorr
// proof bound to this participant id and groupTag (spec.md §4.2 Round 1).
func GenerateRound1(participantID, threshold int, groupTag []byte) (Polynomial, *Round1Output, error) {
	poly := make(Polynomial, threshold)
	for i := range poly {
		s, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("frost: sampling coefficient %d: %w", i, err)
		}
		poly[i] = s
	}

	commitments := poly.Commitments()

	k, err := curve.RandomScalar(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("frost: sampling PoK nonce: %w", err)
	}
	R := curve.ScalarBaseMult(k)
	c := curve.H5(participantID, commitments[0].CompressedBytes(), R.CompressedBytes(), groupTag)
	mu := k.Add(poly[0].Mul(c))

	return poly, &Round1Output{
		ParticipantID: participantID,
		Commitments:   commitments,
		PoKR:          R,
		PoKMu:         mu,
	}, nil
}

// VerifyPoK checks g·μ - c·C_0 == R for a peer's Round-1 broadcast.
func VerifyPoK(out *Round1Output, groupTag []byte) bool {
	if len(out.Commitments) == 0 {
		return false
	}
	c := curve.H5(out.ParticipantID, out.Commitments[0].CompressedBytes(), out.PoKR.CompressedBytes(), groupTag)
	lhs := curve.ScalarBaseMult(out.PoKMu).Add(out.Commitments[0].ScalarMult(c).Negate())
	return lhs.Equal(out.PoKR)
}

// DealShares computes f(p_k) for every recipient id in participantIDs
// (spec.md §4.2 Round 2: private share dealing).
func DealShares(poly Polynomial, participantIDs []int) map[int]*curve.Scalar {
	shares := make(map[int]*curve.Scalar, len(participantIDs))
	for _, id := range participantIDs {
		shares[id] = poly.Evaluate(id)
	}
	return shares
}

// VerifyShare checks g·share == Σ_i recipientID^i · C_i for a share
// dealt by the owner of commitments (spec.md §4.2 Round 3 complaint
// check condition, inverted: true means no complaint is warranted).
func VerifyShare(share *curve.Scalar, recipientID int, commitments []*curve.Point) bool {
	lhs := curve.ScalarBaseMult(share)
	rhs := EvaluateCommitments(commitments, recipientID)
	return lhs.Equal(rhs)
}

// VerificationShare computes Y_{j,k} = Σ_i p_k^i · C_{j,i}, the
// dealer-j-contributed verification share for recipient k, published
// alongside Round 2 so every participant can later verify signature
// shares without learning anyone's secret share.
func VerificationShare(dealerCommitments []*curve.Point, recipientID int) *curve.Point {
	return EvaluateCommitments(dealerCommitments, recipientID)
}

// FinalizeGroupPublicKey sums the constant-term commitments of every
// dealer: Y = Σ_j C_{j,0}.
func FinalizeGroupPublicKey(allCommitments map[int][]*curve.Point) *curve.Point {
	var y *curve.Point
	for _, c := range allCommitments {
		if y == nil {
			y = c[0]
			continue
		}
		y = y.Add(c[0])
	}
	return y
}

// FinalizeSecretShare sums the shares received from every validated
// dealer into this participant's own secret key share s_i.
func FinalizeSecretShare(receivedShares map[int]*curve.Scalar) *curve.Scalar {
	acc := curve.NewScalarFromBigInt(bigFromInt(0))
	for _, s := range receivedShares {
		acc = acc.Add(s)
	}
	return acc
}

// FinalizeVerificationShare sums per-dealer verification shares into
// the full verification share Y_k used in signature-share checks.
func FinalizeVerificationShare(perDealer map[int]*curve.Point) *curve.Point {
	var y *curve.Point
	for _, p := range perDealer {
		if y == nil {
			y = p
			continue
		}
		y = y.Add(p)
	}
	return y
}

// ComplaintCounter tracks the {total, unresponded} tally of spec.md
// §4.2 Round 3 per accused participant.
type ComplaintCounter struct {
	Total       int
	Unresponded int
}

// ComplaintTracker accumulates complaint counters across a DKG run.
type ComplaintTracker struct {
	counters map[int]*ComplaintCounter
}

func NewComplaintTracker() *ComplaintTracker {
	return &ComplaintTracker{counters: make(map[int]*ComplaintCounter)}
}

func (t *ComplaintTracker) RecordComplaint(accused int) {
	c, ok := t.counters[accused]
	if !ok {
		c = &ComplaintCounter{}
		t.counters[accused] = c
	}
	c.Total++
	c.Unresponded++
}

// RecordResponse decrements the unresponded count when the accused
// reveals the disputed share before the complaint deadline.
func (t *ComplaintTracker) RecordResponse(accused int) {
	if c, ok := t.counters[accused]; ok && c.Unresponded > 0 {
		c.Unresponded--
	}
}

// Counter returns the current tally for accused, or a zero value.
func (t *ComplaintTracker) Counter(accused int) ComplaintCounter {
	if c, ok := t.counters[accused]; ok {
		return *c
	}
	return ComplaintCounter{}
}

// ShouldExclude reports whether accused has accumulated >= threshold
// complaints, per spec.md §4.2: "If a validator accumulates ≥
// threshold complaints, the DKG restarts with that validator excluded."
func (t *ComplaintTracker) ShouldExclude(accused, threshold int) bool {
	c, ok := t.counters[accused]
	return ok && c.Total >= threshold
}
