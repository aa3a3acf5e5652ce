package verify

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testDomain() Domain {
	return Domain{
		ChainID:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
}

func TestHashEpochRolloverDeterministic(t *testing.T) {
	p := EpochRolloverPacket{ActiveEpoch: 0, ProposedEpoch: 1, RolloverBlock: 1000}
	a, err := HashEpochRollover(testDomain(), p)
	require.NoError(t, err)
	b, err := HashEpochRollover(testDomain(), p)
	require.NoError(t, err)
	require.Equal(t, a, b)

	p2 := p
	p2.ProposedEpoch = 2
	c, err := HashEpochRollover(testDomain(), p2)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestHashSafeTransactionDeterministic(t *testing.T) {
	account := common.HexToAddress("0xF01000000000000000000000000000000000E6B")
	to := common.HexToAddress("0x22Cb0000000000000000000000000000000729")

	p := SafeTransactionPacket{
		Epoch: 11,
		Tx: MetaTransaction{
			ChainID:   big.NewInt(1),
			Account:   account,
			To:        to,
			Value:     big.NewInt(0),
			Operation: OperationCall,
			Data:      common.FromHex("0xbaddad42"),
			Nonce:     big.NewInt(0),
		},
	}

	a, err := HashSafeTransaction(testDomain(), p)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, a)

	b, err := HashSafeTransaction(testDomain(), p)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func baseTx() MetaTransaction {
	return MetaTransaction{
		ChainID:   big.NewInt(1),
		Account:   common.HexToAddress("0xF01000000000000000000000000000000000E6B"),
		To:        common.HexToAddress("0x22Cb0000000000000000000000000000000729"),
		Value:     big.NewInt(0),
		Operation: OperationCall,
		Data:      common.FromHex("0xbaddad42"),
		Nonce:     big.NewInt(0),
	}
}

// TestRejectedDelegatecall mirrors S4: operation=delegatecall, to !=
// account, not in the allow-list.
func TestRejectedDelegatecall(t *testing.T) {
	tx := baseTx()
	tx.Operation = OperationDelegatecall

	cfg := SafeConfig{}
	err := checkMetaTransaction(cfg, tx, 0)
	require.ErrorIs(t, err, ErrDelegatecallNotAllowed)
}

func TestAllowedDelegatecall(t *testing.T) {
	tx := baseTx()
	tx.Operation = OperationDelegatecall

	cfg := SafeConfig{DelegatecallAllowList: []common.Address{tx.To}}
	err := checkMetaTransaction(cfg, tx, 0)
	require.NoError(t, err)
}

func TestSelfCallRejectsValue(t *testing.T) {
	tx := baseTx()
	tx.To = tx.Account
	tx.Value = big.NewInt(1)
	tx.Data = append(selectorSetGuard[:], common.LeftPadBytes(common.HexToAddress("0x01").Bytes(), 32)...)

	err := checkMetaTransaction(SafeConfig{}, tx, 0)
	require.ErrorIs(t, err, ErrSelfCallValueDisallowed)
}

func TestSelfCallRejectsUnknownSelector(t *testing.T) {
	tx := baseTx()
	tx.To = tx.Account
	tx.Data = append([]byte{0xde, 0xad, 0xbe, 0xef}, make([]byte, 32)...)

	err := checkMetaTransaction(SafeConfig{}, tx, 0)
	require.ErrorIs(t, err, ErrUnknownSelfCallSelector)
}

func TestSelfCallRejectsDisallowedTarget(t *testing.T) {
	tx := baseTx()
	tx.To = tx.Account
	target := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	tx.Data = append(selectorSetFallbackHandler[:], common.LeftPadBytes(target.Bytes(), 32)...)

	err := checkMetaTransaction(SafeConfig{}, tx, 0)
	require.ErrorIs(t, err, ErrSelfCallTargetNotAllowed)
}

func TestSelfCallAllowsAllowListedTarget(t *testing.T) {
	tx := baseTx()
	tx.To = tx.Account
	target := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	tx.Data = append(selectorEnableModule[:], common.LeftPadBytes(target.Bytes(), 32)...)

	cfg := SafeConfig{SelfCallTargetAllow: map[[4]byte][]common.Address{
		selectorEnableModule: {target},
	}}
	err := checkMetaTransaction(cfg, tx, 0)
	require.NoError(t, err)
}

func encodeMultisendEntry(operation uint8, to common.Address, value *big.Int, data []byte) []byte {
	out := []byte{operation}
	out = append(out, to.Bytes()...)
	out = append(out, common.LeftPadBytes(value.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(data))).Bytes(), 32)...)
	out = append(out, data...)
	return out
}

func TestMultisendRoundTripAndRecursiveCheck(t *testing.T) {
	innerTarget := common.HexToAddress("0x3333333333333333333333333333333333333")
	entry := encodeMultisendEntry(OperationCall, innerTarget, big.NewInt(0), common.FromHex("0x1234"))

	decoded, err := DecodeMultisend(entry)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, innerTarget, decoded[0].To)

	multisendAddr := common.HexToAddress("0x4444444444444444444444444444444444444")
	tx := baseTx()
	tx.To = multisendAddr
	tx.Data = entry

	cfg := SafeConfig{MultisendAllowList: []common.Address{multisendAddr}}
	require.NoError(t, checkMetaTransaction(cfg, tx, 0))
}

func TestMultisendRejectsNestedDelegatecallOutsideAllowList(t *testing.T) {
	innerTarget := common.HexToAddress("0x5555555555555555555555555555555555555")
	entry := encodeMultisendEntry(OperationDelegatecall, innerTarget, big.NewInt(0), nil)

	multisendAddr := common.HexToAddress("0x6666666666666666666666666666666666666")
	tx := baseTx()
	tx.To = multisendAddr
	tx.Data = entry

	cfg := SafeConfig{MultisendAllowList: []common.Address{multisendAddr}}
	err := checkMetaTransaction(cfg, tx, 0)
	require.ErrorIs(t, err, ErrDelegatecallNotAllowed)
}

func TestEngineVerifyAndCache(t *testing.T) {
	e := NewEngine(testDomain(), SafeConfig{})

	hash, err := e.Verify(PacketEpochRollover, EpochRolloverPacket{ActiveEpoch: 0, ProposedEpoch: 1})
	require.NoError(t, err)
	require.True(t, e.IsVerified(hash))

	e.Forget(hash)
	require.False(t, e.IsVerified(hash))
}

func TestEngineRejectsUnregisteredType(t *testing.T) {
	e := NewEngine(testDomain(), SafeConfig{})
	_, err := e.Verify(PacketType("Unknown"), nil)
	require.Error(t, err)
}
