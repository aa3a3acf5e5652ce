package verify

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrDelegatecallNotAllowed is raised when a delegatecall targets an
// address outside the configured allow-list (spec.md §4.4 check 1).
var ErrDelegatecallNotAllowed = errors.New("Delegatecall not allowed")

// ErrSelfCallValueDisallowed is raised when a self-call carries a
// non-zero value.
var ErrSelfCallValueDisallowed = errors.New("verify: self-call must not carry value")

// ErrSelfCallDelegatecallDisallowed is raised when a self-call uses
// operation=delegatecall.
var ErrSelfCallDelegatecallDisallowed = errors.New("verify: self-call must not delegatecall")

// ErrSelfCallTargetNotAllowed is raised when a guard/module/fallback
// mutation targets an address outside the per-selector allow-list.
var ErrSelfCallTargetNotAllowed = errors.New("verify: self-call target not allow-listed")

// ErrUnknownSelfCallSelector is raised when a self-call's selector is
// not one of the recognised guard/module/fallback/module-enable
// methods.
var ErrUnknownSelfCallSelector = errors.New("verify: unknown self-call selector")

// ErrMultisendNotAllowed is raised when an inner multisend entry
// targets a contract outside the multisend allow-list, which would let
// an un-vetted multisend smuggle a nested delegatecall.
var ErrMultisendNotAllowed = errors.New("verify: nested multisend target not allow-listed")

// The selector* values are the four Safe owner-mutation methods that
// require the mutated target to be allow-listed (spec.md §4.4 check 2).
var (
	selectorSetGuard          = [4]byte{0xe1, 0x9a, 0x9d, 0xd9} // setGuard(address)
	selectorSetModuleGuard    = [4]byte{0x82, 0x3d, 0x53, 0x3e} // setModuleGuard(address)
	selectorSetFallbackHandler = [4]byte{0xf0, 0x8a, 0x03, 0x23} // setFallbackHandler(address)
	selectorEnableModule      = [4]byte{0x61, 0x0b, 0x59, 0x25} // enableModule(address)
)

// SafeConfig is the per-chain policy a SafeTransaction is checked
// against: which delegatecall targets, self-call mutation targets, and
// multisend contracts are trusted.
type SafeConfig struct {
	DelegatecallAllowList []common.Address
	SelfCallTargetAllow   map[[4]byte][]common.Address
	MultisendAllowList    []common.Address
}

func (c SafeConfig) delegatecallAllowed(to common.Address) bool {
	for _, a := range c.DelegatecallAllowList {
		if a == to {
			return true
		}
	}
	return false
}

func (c SafeConfig) multisendAllowed(to common.Address) bool {
	for _, a := range c.MultisendAllowList {
		if a == to {
			return true
		}
	}
	return false
}

func (c SafeConfig) selfCallTargetAllowed(selector [4]byte, target common.Address) bool {
	for _, a := range c.SelfCallTargetAllow[selector] {
		if a == target {
			return true
		}
	}
	return false
}

// CheckSafeTransaction validates a SafeTransaction packet's top-level
// call (and, recursively, any multisend body it decomposes into)
// against cfg, per spec.md §4.4's three ordered checks.
func CheckSafeTransaction(cfg SafeConfig, p SafeTransactionPacket) error {
	return checkMetaTransaction(cfg, p.Tx, 0)
}

const maxMultisendDepth = 8

func checkMetaTransaction(cfg SafeConfig, tx MetaTransaction, depth int) error {
	if depth > maxMultisendDepth {
		return fmt.Errorf("verify: multisend nesting exceeds depth %d", maxMultisendDepth)
	}

	if tx.Operation == OperationDelegatecall {
		if tx.To != tx.Account && !cfg.delegatecallAllowed(tx.To) {
			return ErrDelegatecallNotAllowed
		}
	}

	if tx.To == tx.Account {
		if err := checkSelfCall(cfg, tx); err != nil {
			return err
		}
		return nil
	}

	if cfg.multisendAllowed(tx.To) {
		inner, err := DecodeMultisend(tx.Data)
		if err != nil {
			return fmt.Errorf("verify: decoding multisend body: %w", err)
		}
		for i, innerTx := range inner {
			innerTx.ChainID = tx.ChainID
			innerTx.Account = tx.Account
			innerTx.Nonce = tx.Nonce
			if err := checkMetaTransaction(cfg, innerTx, depth+1); err != nil {
				return fmt.Errorf("verify: multisend entry %d: %w", i, err)
			}
		}
	}

	return nil
}

func checkSelfCall(cfg SafeConfig, tx MetaTransaction) error {
	if tx.Value != nil && tx.Value.Sign() != 0 {
		return ErrSelfCallValueDisallowed
	}
	if tx.Operation == OperationDelegatecall {
		return ErrSelfCallDelegatecallDisallowed
	}
	if len(tx.Data) < 36 {
		return ErrUnknownSelfCallSelector
	}

	var selector [4]byte
	copy(selector[:], tx.Data[:4])

	switch selector {
	case selectorSetGuard, selectorSetModuleGuard, selectorSetFallbackHandler, selectorEnableModule:
		target := common.BytesToAddress(tx.Data[4:36])
		if !cfg.selfCallTargetAllowed(selector, target) {
			return ErrSelfCallTargetNotAllowed
		}
		return nil
	default:
		return ErrUnknownSelfCallSelector
	}
}

// DecodeMultisend parses a Gnosis Safe MultiSendCallOnly-encoded body
// into its constituent MetaTransactions. Wire format per entry:
// operation(1) || to(20) || value(32) || dataLength(32) || data(dataLength).
func DecodeMultisend(data []byte) ([]MetaTransaction, error) {
	var out []MetaTransaction
	offset := 0
	for offset < len(data) {
		if offset+1+20+32+32 > len(data) {
			return nil, fmt.Errorf("verify: truncated multisend entry at offset %d", offset)
		}

		operation := data[offset]
		offset++

		to := common.BytesToAddress(data[offset : offset+20])
		offset += 20

		value := new(big.Int).SetBytes(data[offset : offset+32])
		offset += 32

		length := binary.BigEndian.Uint64(data[offset+24 : offset+32])
		offset += 32

		if offset+int(length) > len(data) {
			return nil, fmt.Errorf("verify: multisend entry data length %d overruns buffer", length)
		}
		body := make([]byte, length)
		copy(body, data[offset:offset+int(length)])
		offset += int(length)

		out = append(out, MetaTransaction{
			To:        to,
			Value:     value,
			Operation: operation,
			Data:      body,
		})
	}
	return out, nil
}
