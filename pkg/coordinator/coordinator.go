// Package coordinator is the external-collaborator boundary: the
// coordinator contract's read/write surface and the transaction signer
// the action queue's executor drives. The contract itself is
// out-of-scope (interface only); this package's Client is a thin
// go-ethereum-backed implementation so the driver has something
// concrete to call, grounded on the teacher's
// pkg/contractCaller/caller/caller.go wiring style (an *ethclient.Client
// plus per-call ABI packing) but using raw accounts/abi packing rather
// than abigen-generated bindings, since the coordinator contract's
// generated Go bindings are themselves out of this repo's scope.
package coordinator

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Signer produces a signed transaction for a call to the coordinator
// contract; implementations wrap a local private key (LocalSigner) or
// a remote signer (pkg/coordinator/awssigner).
type Signer interface {
	Sign(address common.Address, tx *types.Transaction) (*types.Transaction, error)
	From() common.Address
}

// Client is the external-collaborator surface of spec.md §6's
// "Coordinator functions produced": keyGenAndCommit, keyGenCommit,
// keyGenSecretShare, preprocess, signRevealNonces, signShare,
// proposeEpoch, stageEpoch, attestTransaction.
type Client struct {
	eth     *ethclient.Client
	abi     abi.ABI
	address common.Address
	signer  Signer
	chainID *big.Int
}

// functionsABIJSON declares every coordinator write method named in
// spec.md §6.
const functionsABIJSON = `[
  {"type":"function","name":"keyGenAndCommit","inputs":[
    {"name":"gid","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"keyGenCommit","inputs":[
    {"name":"gid","type":"bytes32"},{"name":"commitmentC","type":"bytes"},
    {"name":"commitmentR","type":"bytes"},{"name":"commitmentMu","type":"bytes32"}],
    "outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"keyGenSecretShare","inputs":[
    {"name":"gid","type":"bytes32"},{"name":"toIdentifier","type":"uint256"},
    {"name":"shareY","type":"bytes"},{"name":"shareF","type":"bytes"}],
    "outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"preprocess","inputs":[
    {"name":"gid","type":"bytes32"},{"name":"chunk","type":"uint256"},
    {"name":"commitment","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"signRevealNonces","inputs":[
    {"name":"sid","type":"bytes32"},{"name":"nonceD","type":"bytes"},
    {"name":"nonceE","type":"bytes"},{"name":"proof","type":"bytes32[]"}],
    "outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"signShare","inputs":[
    {"name":"sid","type":"bytes32"},{"name":"z","type":"bytes32"},
    {"name":"root","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"proposeEpoch","inputs":[
    {"name":"proposedEpoch","type":"uint256"},{"name":"groupKey","type":"bytes32"}],
    "outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"stageEpoch","inputs":[
    {"name":"proposedEpoch","type":"uint256"},{"name":"rolloverBlock","type":"uint256"}],
    "outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"attestTransaction","inputs":[
    {"name":"message","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// New connects a Client to the coordinator contract at address over
// eth, signing outbound transactions with signer.
func New(eth *ethclient.Client, address common.Address, signer Signer, chainID *big.Int) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(functionsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("coordinator: parsing ABI: %w", err)
	}
	return &Client{eth: eth, abi: parsed, address: address, signer: signer, chainID: chainID}, nil
}

// call packs method(args...), signs, and submits a transaction against
// the coordinator contract, returning the pending transaction hash.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: packing %s: %w", method, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.signer.From())
	if err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: fetching nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: fetching gas price: %w", err)
	}
	msg := ethereum.CallMsg{From: c.signer.From(), To: &c.address, Data: data}
	gasLimit, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: estimating gas for %s: %w", method, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := c.signer.Sign(c.signer.From(), tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: signing %s transaction: %w", method, err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("coordinator: submitting %s transaction: %w", method, err)
	}
	return signed.Hash(), nil
}

func (c *Client) KeyGenAndCommit(ctx context.Context, gid [32]byte) (common.Hash, error) {
	return c.call(ctx, "keyGenAndCommit", gid)
}

func (c *Client) KeyGenCommit(ctx context.Context, gid [32]byte, commitmentC, commitmentR []byte, commitmentMu [32]byte) (common.Hash, error) {
	return c.call(ctx, "keyGenCommit", gid, commitmentC, commitmentR, commitmentMu)
}

func (c *Client) KeyGenSecretShare(ctx context.Context, gid [32]byte, toIdentifier *big.Int, shareY, shareF []byte) (common.Hash, error) {
	return c.call(ctx, "keyGenSecretShare", gid, toIdentifier, shareY, shareF)
}

func (c *Client) Preprocess(ctx context.Context, gid [32]byte, chunk *big.Int, commitment [32]byte) (common.Hash, error) {
	return c.call(ctx, "preprocess", gid, chunk, commitment)
}

func (c *Client) SignRevealNonces(ctx context.Context, sid [32]byte, nonceD, nonceE []byte, proof [][32]byte) (common.Hash, error) {
	return c.call(ctx, "signRevealNonces", sid, nonceD, nonceE, proof)
}

func (c *Client) SignShare(ctx context.Context, sid [32]byte, z, root [32]byte) (common.Hash, error) {
	return c.call(ctx, "signShare", sid, z, root)
}

func (c *Client) ProposeEpoch(ctx context.Context, proposedEpoch *big.Int, groupKey [32]byte) (common.Hash, error) {
	return c.call(ctx, "proposeEpoch", proposedEpoch, groupKey)
}

func (c *Client) StageEpoch(ctx context.Context, proposedEpoch, rolloverBlock *big.Int) (common.Hash, error) {
	return c.call(ctx, "stageEpoch", proposedEpoch, rolloverBlock)
}

func (c *Client) AttestTransaction(ctx context.Context, message [32]byte) (common.Hash, error) {
	return c.call(ctx, "attestTransaction", message)
}
