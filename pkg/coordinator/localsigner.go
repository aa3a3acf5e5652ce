package coordinator

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs coordinator transactions with an in-process
// ECDSA private key, the default Signer when no remote signer is
// configured.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewLocalSigner derives the signing address from key.
func NewLocalSigner(key *ecdsa.PrivateKey, chainID *big.Int) *LocalSigner {
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey), chainID: chainID}
}

func (s *LocalSigner) From() common.Address {
	return s.address
}

// Sign signs tx with the in-process key, ignoring address (always
// equal to From()) to match the coordinator.Signer interface.
func (s *LocalSigner) Sign(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.NewLondonSigner(s.chainID)
	return types.SignTx(tx, signer, s.key)
}
