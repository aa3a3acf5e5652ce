// Package verify implements the EIP-712 typed-hash verification engine
// of spec.md §4.4: pluggable packet handlers, each canonicalising a
// packet into a typed structure, hashing it under the consensus
// domain, and running domain-specific admission checks before a
// packet is allowed to start a signing session.
//
// Grounded on the teacher's stack choice of
// github.com/ethereum/go-ethereum for on-chain data shapes; the typed
// hashing itself uses go-ethereum's signer/core/apitypes package, the
// same EIP-712 implementation go-ethereum's own wallet/signer tooling
// uses, rather than hand-rolling ABI-encoding of the struct hash.
package verify

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Domain is the EIP-712 domain separator inputs shared by every packet
// type this engine verifies.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

// EpochRolloverPacket is the canonical form of an EpochRollover
// attestation (spec.md §4.4, §6 "Typed data hashes").
type EpochRolloverPacket struct {
	ActiveEpoch   uint64
	ProposedEpoch uint64
	RolloverBlock uint64
	GroupKeyX     [32]byte
	GroupKeyY     [32]byte
}

// MetaTransaction is a single Safe-style call, the unit both a
// top-level SafeTransaction and each multisend entry decompose into.
type MetaTransaction struct {
	ChainID   *big.Int
	Account   common.Address
	To        common.Address
	Value     *big.Int
	Operation uint8 // 0 = call, 1 = delegatecall
	Data      []byte
	Nonce     *big.Int
}

// SafeTransactionPacket is the canonical form of a TransactionProposed
// attestation.
type SafeTransactionPacket struct {
	Epoch uint64
	Tx    MetaTransaction
}

const (
	OperationCall         uint8 = 0
	OperationDelegatecall uint8 = 1
)
