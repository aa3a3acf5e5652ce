package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeGroupIDMasksLow64Bits(t *testing.T) {
	root := [32]byte{1, 2, 3}
	context := GenesisContext()

	for _, count := range []int{2, 3, 5, 7, 10} {
		threshold := Threshold(count)
		gid := ComputeGroupID(root, count, threshold, context)

		for i := 24; i < 32; i++ {
			require.Equal(t, byte(0), gid[i], "byte %d of groupId must be zero", i)
		}
	}
}

func TestComputeGroupIDDeterministic(t *testing.T) {
	root := [32]byte{9, 9, 9}
	context := SaltedGenesisContext([32]byte{0xaa})

	a := ComputeGroupID(root, 3, Threshold(3), context)
	b := ComputeGroupID(root, 3, Threshold(3), context)
	require.Equal(t, a, b)

	c := ComputeGroupID(root, 5, Threshold(5), context)
	require.NotEqual(t, a, c)
}

func TestThreshold(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3, 7: 4, 10: 6}
	for count, want := range cases {
		require.Equal(t, want, Threshold(count))
	}
}
