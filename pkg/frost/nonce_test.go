package frost

import (
	"testing"

	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/stretchr/testify/require"
)

func TestNonceTreeAllLeavesVerify(t *testing.T) {
	secret, err := curve.SystemRandomScalar()
	require.NoError(t, err)

	nt, err := GenerateNonceTree(1, secret, []byte("group-g"))
	require.NoError(t, err)
	require.Equal(t, NonceTreeSize, len(nt.Pairs))

	for i := 0; i < NonceTreeSize; i++ {
		pair, proof, err := nt.Reveal(i)
		require.NoError(t, err)
		require.True(t, VerifyLeaf(nt.Root, i, pair.Dp, pair.Ep, proof))
	}
}

func TestNonceTreeRejectsDoubleReveal(t *testing.T) {
	secret, err := curve.SystemRandomScalar()
	require.NoError(t, err)

	nt, err := GenerateNonceTree(1, secret, []byte("group-g"))
	require.NoError(t, err)

	_, _, err = nt.Reveal(10)
	require.NoError(t, err)

	_, _, err = nt.Reveal(10)
	require.ErrorIs(t, err, ErrLeafReused)
}

func TestNonceTreeNextExhausts(t *testing.T) {
	secret, err := curve.SystemRandomScalar()
	require.NoError(t, err)

	nt, err := GenerateNonceTree(1, secret, []byte("group-g"))
	require.NoError(t, err)

	seen := make(map[int]bool, NonceTreeSize)
	for i := 0; i < NonceTreeSize; i++ {
		idx, _, _, err := nt.Next()
		require.NoError(t, err)
		require.False(t, seen[idx])
		seen[idx] = true
	}

	_, _, _, err = nt.Next()
	require.ErrorIs(t, err, ErrNoncesExhausted)
}
