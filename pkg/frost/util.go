package frost

import "math/big"

func bigFromInt(x int) *big.Int {
	return big.NewInt(int64(x))
}
