package events

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	vtypes "github.com/shieldnet/validator-core/pkg/types"
)

func TestDecodeKnownEvent(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(eventsABIJSON))
	require.NoError(t, err)

	ev := parsed.Events["EpochProposed"]
	data, err := ev.Inputs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(1000), [32]byte{0xaa})
	require.NoError(t, err)

	log := types.Log{
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: 42,
		Index:       3,
	}

	d, err := NewDecoder()
	require.NoError(t, err)

	transition, err := d.Decode(log)
	require.NoError(t, err)
	require.NotNil(t, transition)
	require.Equal(t, EventEpochProposed, transition.ID)
	require.Equal(t, uint64(42), transition.Block)
	require.Equal(t, uint64(3), transition.Index)
	require.Equal(t, big.NewInt(1), transition.Fields["proposedEpoch"])
}

func TestDecodeUnknownEventIgnored(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{{0xde, 0xad, 0xbe, 0xef}},
		Data:   nil,
	}

	transition, err := d.Decode(log)
	require.NoError(t, err)
	require.Nil(t, transition)
}

func TestOrderSortsByBlockThenIndex(t *testing.T) {
	transitions := []*vtypes.EventTransition{
		{ID: "b", Block: 2, Index: 0},
		{ID: "a", Block: 1, Index: 5},
		{ID: "c", Block: 1, Index: 1},
	}

	Order(transitions)

	require.Equal(t, []string{"c", "a", "b"}, []string{transitions[0].ID, transitions[1].ID, transitions[2].ID})
}
