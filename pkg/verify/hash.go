package verify

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

func domainTypes() []apitypes.Type {
	return []apitypes.Type{
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
}

func domainMap(d Domain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// HashEpochRollover computes the EIP-712 typed hash of
// EpochRollover(uint64 activeEpoch, uint64 proposedEpoch, uint64
// rolloverBlock, uint256 groupKeyX, uint256 groupKeyY) under domain d.
func HashEpochRollover(d Domain, p EpochRolloverPacket) ([32]byte, error) {
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes(),
			"EpochRollover": []apitypes.Type{
				{Name: "activeEpoch", Type: "uint64"},
				{Name: "proposedEpoch", Type: "uint64"},
				{Name: "rolloverBlock", Type: "uint64"},
				{Name: "groupKeyX", Type: "uint256"},
				{Name: "groupKeyY", Type: "uint256"},
			},
		},
		PrimaryType: "EpochRollover",
		Domain:      domainMap(d),
		Message: apitypes.TypedDataMessage{
			"activeEpoch":   fmt.Sprintf("%d", p.ActiveEpoch),
			"proposedEpoch": fmt.Sprintf("%d", p.ProposedEpoch),
			"rolloverBlock": fmt.Sprintf("%d", p.RolloverBlock),
			"groupKeyX":     new(big.Int).SetBytes(p.GroupKeyX[:]).String(),
			"groupKeyY":     new(big.Int).SetBytes(p.GroupKeyY[:]).String(),
		},
	}

	return typedDataHash(td)
}

// HashSafeTransaction computes the EIP-712 typed hash of
// TransactionProposal(uint64 epoch, MetaTransaction transaction) with
// MetaTransaction(uint256 chainId, address account, address to,
// uint256 value, uint8 operation, bytes data, uint256 nonce) under
// domain d.
func HashSafeTransaction(d Domain, p SafeTransactionPacket) ([32]byte, error) {
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes(),
			"TransactionProposal": []apitypes.Type{
				{Name: "epoch", Type: "uint64"},
				{Name: "transaction", Type: "MetaTransaction"},
			},
			"MetaTransaction": []apitypes.Type{
				{Name: "chainId", Type: "uint256"},
				{Name: "account", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "operation", Type: "uint8"},
				{Name: "data", Type: "bytes"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "TransactionProposal",
		Domain:      domainMap(d),
		Message: apitypes.TypedDataMessage{
			"epoch": fmt.Sprintf("%d", p.Epoch),
			"transaction": apitypes.TypedDataMessage{
				"chainId":   p.Tx.ChainID.String(),
				"account":   p.Tx.Account.Hex(),
				"to":        p.Tx.To.Hex(),
				"value":     p.Tx.Value.String(),
				"operation": fmt.Sprintf("%d", p.Tx.Operation),
				"data":      p.Tx.Data,
				"nonce":     p.Tx.Nonce.String(),
			},
		},
	}

	return typedDataHash(td)
}

func typedDataHash(td apitypes.TypedData) ([32]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return [32]byte{}, fmt.Errorf("verify: computing typed hash: %w", err)
	}
	var out [32]byte
	copy(out[:], hash)
	return out, nil
}
