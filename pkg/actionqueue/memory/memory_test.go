package memory

import (
	"testing"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	"github.com/shieldnet/validator-core/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(types.Action{Kind: "a"}))
	require.NoError(t, q.Enqueue(types.Action{Kind: "b"}))

	head, err := q.Peek()
	require.NoError(t, err)
	require.Equal(t, "a", head.Kind)

	require.NoError(t, q.Pop())

	head, err = q.Peek()
	require.NoError(t, err)
	require.Equal(t, "b", head.Kind)
}

func TestPeekEmptyReturnsErrEmpty(t *testing.T) {
	q := New()
	_, err := q.Peek()
	require.ErrorIs(t, err, actionqueue.ErrEmpty)
}

func TestRetryDropsAfterMaxRetries(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(types.Action{Kind: "a"}))

	for i := 0; i < actionqueue.MaxRetries; i++ {
		err := q.Retry()
		require.NoError(t, err)
	}

	err := q.Retry()
	require.ErrorIs(t, err, actionqueue.ErrMaxRetriesExceeded)

	n, err := q.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
