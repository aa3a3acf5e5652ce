package frost

import (
	"testing"

	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/stretchr/testify/require"
)

func TestScalarBaseMultNonIdentity(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, err := curve.SystemRandomScalar()
		require.NoError(t, err)

		p := curve.ScalarBaseMult(s)
		require.False(t, p.IsInfinity())
	}
}

func TestPoKRoundTrip(t *testing.T) {
	groupTag := []byte("epoch-0-genesis")
	_, out, err := GenerateRound1(1, 2, groupTag)
	require.NoError(t, err)
	require.True(t, VerifyPoK(out, groupTag))
}

func TestPoKRejectsWrongGroupTag(t *testing.T) {
	_, out, err := GenerateRound1(1, 2, []byte("tag-a"))
	require.NoError(t, err)
	require.False(t, VerifyPoK(out, []byte("tag-b")))
}

// TestFullDKGReconstructsGroupKey runs a complete honest DKG among n
// participants with threshold t = n/2+1, then checks:
//   - the group public key equals the sum of the dealers' constant terms
//   - any t signers' Lagrange-weighted shares reconstruct the implicit
//     secret
func TestFullDKGReconstructsGroupKey(t *testing.T) {
	for _, n := range []int{2, 3, 5, 7} {
		threshold := n/2 + 1
		groupTag := []byte("group-tag")

		ids := make([]int, n)
		for i := range ids {
			ids[i] = i + 1
		}

		polys := make(map[int]Polynomial, n)
		commitments := make(map[int][]*curve.Point, n)

		for _, id := range ids {
			poly, out, err := GenerateRound1(id, threshold, groupTag)
			require.NoError(t, err)
			require.True(t, VerifyPoK(out, groupTag))
			polys[id] = poly
			commitments[id] = out.Commitments
		}

		// Every dealer deals a share to every recipient; every recipient
		// verifies every dealt share against the dealer's commitments.
		receivedShares := make(map[int]map[int]*curve.Scalar, n)
		for _, recipient := range ids {
			receivedShares[recipient] = make(map[int]*curve.Scalar, n)
		}
		for _, dealer := range ids {
			dealt := DealShares(polys[dealer], ids)
			for recipient, share := range dealt {
				require.True(t, VerifyShare(share, recipient, commitments[dealer]))
				receivedShares[recipient][dealer] = share
			}
		}

		secretShares := make(map[int]*curve.Scalar, n)
		for _, id := range ids {
			secretShares[id] = FinalizeSecretShare(receivedShares[id])
		}

		groupKey := FinalizeGroupPublicKey(commitments)

		// Implicit secret s = sum of every dealer's a_0.
		impliedSecret := curve.NewScalarFromBigInt(bigFromInt(0))
		for _, id := range ids {
			impliedSecret = impliedSecret.Add(polys[id][0])
		}
		require.True(t, curve.ScalarBaseMult(impliedSecret).Equal(groupKey))

		// Any t-sized signer subset reconstructs s via Lagrange weights.
		signerSet := ids[:threshold]
		reconstructed := curve.NewScalarFromBigInt(bigFromInt(0))
		for _, id := range signerSet {
			lambda := LagrangeCoefficient(id, signerSet)
			reconstructed = reconstructed.Add(lambda.Mul(secretShares[id]))
		}
		require.True(t, reconstructed.Equal(impliedSecret))
	}
}

func TestComplaintTrackerExcludesAtThreshold(t *testing.T) {
	tracker := NewComplaintTracker()
	threshold := 3

	tracker.RecordComplaint(5)
	require.False(t, tracker.ShouldExclude(5, threshold))
	tracker.RecordComplaint(5)
	require.False(t, tracker.ShouldExclude(5, threshold))
	tracker.RecordComplaint(5)
	require.True(t, tracker.ShouldExclude(5, threshold))

	counter := tracker.Counter(5)
	require.Equal(t, 3, counter.Total)
	require.Equal(t, 3, counter.Unresponded)

	tracker.RecordResponse(5)
	require.Equal(t, 2, tracker.Counter(5).Unresponded)
}
