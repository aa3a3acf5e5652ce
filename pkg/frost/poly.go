// Package frost implements the FROST DKG and threshold-signing
// primitives of spec.md §4.2–§4.3: Pedersen-extended Feldman VSS with
// proof-of-knowledge, nonce pre-processing over a Merkle-committed
// nonce tree, and signature-share production/verification.
//
// Grounded on the teacher's pkg/dkg/dkg.go Feldman-VSS shape
// (GenerateShares/VerifyShare/FinalizeKeyShare over gnark-crypto
// bls12-381 fr.Element + polynomial.Polynomial), re-expressed over
// pkg/curve's secp256k1 scalars, and on
// threshold-network-roast-go/frost/coordinator.go +
// threshold-network-roast-go/poly.go for the Lagrange-interpolation
// and signature-share-aggregation shape that the teacher's BLS DKG
// does not need.
package frost

import (
	"github.com/shieldnet/validator-core/pkg/curve"
)

// Polynomial is a list of coefficients a_0..a_{t-1}, a_0 being the secret.
type Polynomial []*curve.Scalar

// Evaluate computes f(x) via Horner's method.
func (p Polynomial) Evaluate(x int) *curve.Scalar {
	xs := curve.NewScalarFromBigInt(bigFromInt(x))
	acc := curve.NewScalarFromBigInt(bigFromInt(0))
	for i := len(p) - 1; i >= 0; i-- {
		acc = acc.Mul(xs).Add(p[i])
	}
	return acc
}

// Commitments returns g*a_j for every coefficient, i.e. the Feldman
// VSS commitment vector published in DKG Round 1.
func (p Polynomial) Commitments() []*curve.Point {
	out := make([]*curve.Point, len(p))
	for i, a := range p {
		out[i] = curve.ScalarBaseMult(a)
	}
	return out
}

// EvaluateCommitments computes Σ_i x^i · C_i, the right-hand side a
// verifier checks a dealt share against without learning the secret.
func EvaluateCommitments(commitments []*curve.Point, x int) *curve.Point {
	xs := curve.NewScalarFromBigInt(bigFromInt(x))
	power := curve.NewScalarFromBigInt(bigFromInt(1))
	acc := commitments[0]
	for i := 1; i < len(commitments); i++ {
		power = power.Mul(xs)
		acc = acc.Add(commitments[i].ScalarMult(power))
	}
	return acc
}

// LagrangeCoefficient computes λ_i = Π_{j∈S, j≠i} j/(j-i) for
// interpolating f(0) from the signer/dealer set S.
func LagrangeCoefficient(id int, set []int) *curve.Scalar {
	num := curve.NewScalarFromBigInt(bigFromInt(1))
	den := curve.NewScalarFromBigInt(bigFromInt(1))
	for _, j := range set {
		if j == id {
			continue
		}
		num = num.Mul(curve.NewScalarFromBigInt(bigFromInt(j)))
		den = den.Mul(curve.NewScalarFromBigInt(bigFromInt(j - id)))
	}
	return num.Mul(den.Inverse())
}
