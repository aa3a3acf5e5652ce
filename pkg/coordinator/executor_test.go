package coordinator

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/types"
)

func TestExecutorRoutesKnownNonCoordinatorKindsWithoutError(t *testing.T) {
	exec := NewExecutor(nil, zap.NewNop())

	for _, kind := range []string{ActionSignExecuteCallback, ActionVerifyTransaction, ActionSignEpochRollover} {
		err := exec.Execute(context.Background(), types.Action{Kind: kind})
		require.NoError(t, err)
	}
}

func TestExecutorRejectsUnknownKind(t *testing.T) {
	exec := NewExecutor(nil, zap.NewNop())
	err := exec.Execute(context.Background(), types.Action{Kind: "not_a_real_action"})
	require.Error(t, err)
}

func TestExecutorKeyGenAndCommitRequiresGidPayload(t *testing.T) {
	exec := NewExecutor(nil, zap.NewNop())
	err := exec.Execute(context.Background(), types.Action{Kind: ActionKeyGenAndCommit, Payload: map[string]interface{}{}})
	require.Error(t, err)
}

func mustGenerateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestLocalSignerFromMatchesDerivedAddress(t *testing.T) {
	key := mustGenerateKey(t)
	signer := NewLocalSigner(key, big.NewInt(1))
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.From())
}
