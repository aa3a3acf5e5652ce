package frost

import (
	"testing"

	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/stretchr/testify/require"
)

// TestFullSigningRoundVerifies runs a complete honest FROST signing
// round over a DKG'd group and checks:
//   - each signer's share satisfies its local verification equation
//   - the aggregated signature verifies against the group public key
func TestFullSigningRoundVerifies(t *testing.T) {
	n, threshold := 5, 3
	groupTag := []byte("signing-group")

	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}

	polys := make(map[int]Polynomial, n)
	commitments := make(map[int][]*curve.Point, n)
	for _, id := range ids {
		poly, out, err := GenerateRound1(id, threshold, groupTag)
		require.NoError(t, err)
		polys[id] = poly
		commitments[id] = out.Commitments
	}

	receivedShares := make(map[int]map[int]*curve.Scalar, n)
	for _, recipient := range ids {
		receivedShares[recipient] = make(map[int]*curve.Scalar, n)
	}
	verificationContribs := make(map[int]map[int]*curve.Point, n)
	for _, recipient := range ids {
		verificationContribs[recipient] = make(map[int]*curve.Point, n)
	}
	for _, dealer := range ids {
		dealt := DealShares(polys[dealer], ids)
		for recipient, share := range dealt {
			require.True(t, VerifyShare(share, recipient, commitments[dealer]))
			receivedShares[recipient][dealer] = share
			verificationContribs[recipient][dealer] = VerificationShare(commitments[dealer], recipient)
		}
	}

	secretShares := make(map[int]*curve.Scalar, n)
	verificationShares := make(map[int]*curve.Point, n)
	for _, id := range ids {
		secretShares[id] = FinalizeSecretShare(receivedShares[id])
		verificationShares[id] = FinalizeVerificationShare(verificationContribs[id])
	}
	groupKey := FinalizeGroupPublicKey(commitments)

	signers := ids[:threshold]
	nonceTrees := make(map[int]*NonceTree, threshold)
	for _, id := range signers {
		nt, err := GenerateNonceTree(id, secretShares[id], groupTag)
		require.NoError(t, err)
		nonceTrees[id] = nt
	}

	signerCommitments := make([]SignerCommitment, 0, threshold)
	revealedPairs := make(map[int]*NoncePair, threshold)
	for _, id := range signers {
		_, pair, _, err := nonceTrees[id].Next()
		require.NoError(t, err)
		revealedPairs[id] = pair
		signerCommitments = append(signerCommitments, SignerCommitment{ParticipantID: id, D: pair.Dp, E: pair.Ep})
	}

	message := []byte("epoch rollover attestation payload")
	binding := BindingFactors(groupKey, signerCommitments, message)
	R := GroupCommitment(signerCommitments, binding)
	c := Challenge(R, groupKey, message)

	shares := make(map[int]*curve.Scalar, threshold)
	for _, sc := range signerCommitments {
		id := sc.ParticipantID
		lambda := LagrangeCoefficient(id, signers)
		z := SignatureShare(revealedPairs[id].D, revealedPairs[id].E, binding[id], lambda, secretShares[id], c)
		shares[id] = z

		ri := SignerPoint(sc, binding[id])
		require.True(t, VerifySignatureShare(z, ri, verificationShares[id], lambda, c))
	}

	aggregated := Aggregate(shares)
	require.True(t, VerifySignature(R, aggregated, groupKey, c))
}
