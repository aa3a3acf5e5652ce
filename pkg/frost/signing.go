package frost

import (
	"fmt"
	"sort"

	"github.com/shieldnet/validator-core/pkg/curve"
)

// SignerCommitment is one signer's revealed per-signing-round nonce
// commitment pair, as broadcast in Round 1 of spec.md §4.3.
type SignerCommitment struct {
	ParticipantID int
	D, E          *curve.Point
}

func sortedIDs(commitments []SignerCommitment) []int {
	ids := make([]int, len(commitments))
	for i, c := range commitments {
		ids[i] = c.ParticipantID
	}
	sort.Ints(ids)
	return ids
}

func encodedCommitments(commitments []SignerCommitment) [][]byte {
	sorted := make([]SignerCommitment, len(commitments))
	copy(sorted, commitments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ParticipantID < sorted[j].ParticipantID })

	out := make([][]byte, 0, len(sorted)*2)
	for _, c := range sorted {
		out = append(out, c.D.CompressedBytes(), c.E.CompressedBytes())
	}
	return out
}

// BindingFactors computes rho_i for every signer, binding each
// signer's commitments to the full signer set, group key, and message
// (spec.md §4.3 Round 2).
func BindingFactors(groupPubKey *curve.Point, commitments []SignerCommitment, message []byte) map[int]*curve.Scalar {
	ids := sortedIDs(commitments)
	encoded := encodedCommitments(commitments)
	gpk := groupPubKey.CompressedBytes()

	out := make(map[int]*curve.Scalar, len(commitments))
	for _, c := range commitments {
		out[c.ParticipantID] = curve.H1(gpk, ids, encoded, message, c.ParticipantID)
	}
	return out
}

// SignerPoint computes R_i = D_i + rho_i * E_i, a single signer's
// contribution to the group commitment.
func SignerPoint(commitment SignerCommitment, rho *curve.Scalar) *curve.Point {
	return commitment.D.Add(commitment.E.ScalarMult(rho))
}

// GroupCommitment sums every signer's R_i into the aggregate R used in
// the Schnorr challenge.
func GroupCommitment(commitments []SignerCommitment, binding map[int]*curve.Scalar) *curve.Point {
	var r *curve.Point
	for _, c := range commitments {
		ri := SignerPoint(c, binding[c.ParticipantID])
		if r == nil {
			r = ri
			continue
		}
		r = r.Add(ri)
	}
	return r
}

// Challenge computes the group Schnorr challenge c = H2(R, Y, message).
func Challenge(groupCommitment, groupPubKey *curve.Point, message []byte) *curve.Scalar {
	return curve.H2(groupCommitment.CompressedBytes(), groupPubKey.CompressedBytes(), message)
}

// SignatureShare computes z_i = d_i + rho_i*e_i + lambda_i*s_i*c, one
// signer's contribution to the aggregated signature (spec.md §4.3
// Round 2).
func SignatureShare(d, e, rho, lambda, secretShare, challenge *curve.Scalar) *curve.Scalar {
	hiding := d
	binding := rho.Mul(e)
	lagrangeTerm := lambda.Mul(secretShare).Mul(challenge)
	return hiding.Add(binding).Add(lagrangeTerm)
}

// ErrInvalidSignatureShare is returned when a signer's published share
// fails the local verification equation.
var ErrInvalidSignatureShare = fmt.Errorf("frost: signature share failed verification")

// VerifySignatureShare checks g*z_i == R_i + (lambda_i*c)*Y_i, letting
// any participant catch a misbehaving signer before aggregation
// instead of only discovering it via a broken aggregate signature.
func VerifySignatureShare(z *curve.Scalar, signerPoint, verificationShare *curve.Point, lambda, challenge *curve.Scalar) bool {
	lhs := curve.ScalarBaseMult(z)
	rhs := signerPoint.Add(verificationShare.ScalarMult(lambda.Mul(challenge)))
	return lhs.Equal(rhs)
}

// Aggregate sums every signer's share into the final scalar z.
func Aggregate(shares map[int]*curve.Scalar) *curve.Scalar {
	acc := curve.NewScalarFromBigInt(bigFromInt(0))
	for _, z := range shares {
		acc = acc.Add(z)
	}
	return acc
}

// VerifySignature checks the final aggregate Schnorr equation
// g*z == R + c*Y.
func VerifySignature(groupCommitment *curve.Point, z *curve.Scalar, groupPubKey *curve.Point, challenge *curve.Scalar) bool {
	lhs := curve.ScalarBaseMult(z)
	rhs := groupCommitment.Add(groupPubKey.ScalarMult(challenge))
	return lhs.Equal(rhs)
}
