package merkle

import (
	"testing"

	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/stretchr/testify/require"
)

func leavesOf(n int) [][32]byte {
	out := make([][32]byte, n)
	for i := 0; i < n; i++ {
		out[i] = curve.H4([]byte{byte(i)})
	}
	return out
}

func TestBuildAndVerifyAllLeaves(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7, 8, 1024} {
		leaves := leavesOf(n)
		tree, err := Build(leaves)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			proof, err := tree.Prove(i)
			require.NoError(t, err)
			require.True(t, Verify(proof, tree.Root), "leaf %d/%d should verify", i, n)
		}
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	tree, err := Build(leavesOf(8))
	require.NoError(t, err)

	proof, err := tree.Prove(3)
	require.NoError(t, err)

	wrongRoot := curve.H4([]byte("not the root"))
	require.False(t, Verify(proof, wrongRoot))
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}

func TestWireProofRoundTrip(t *testing.T) {
	tree, err := Build(leavesOf(16))
	require.NoError(t, err)

	proof, err := tree.Prove(5)
	require.NoError(t, err)

	wire := ToWireProof(proof)
	back := FromWireProof(wire, proof.Leaf)
	require.True(t, Verify(back, tree.Root))
}
