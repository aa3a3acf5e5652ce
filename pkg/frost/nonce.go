package frost

import (
	"crypto/rand"
	"fmt"

	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/shieldnet/validator-core/pkg/merkle"
)

// NonceTreeSize is the fixed number of pre-committed nonce pairs a
// validator generates per epoch group (spec.md §4.3).
const NonceTreeSize = 1024

// NoncePair is a single (d_i, e_i) hiding/binding nonce pair and its
// curve commitments (D_i, E_i). The scalars never leave the
// validator's process; only the leaf hash (derived from D_i, E_i) is
// published in the tree.
type NoncePair struct {
	D, E   *curve.Scalar
	Dp, Ep *curve.Point
	used   bool
}

// NonceTree is a validator's full local nonce pre-processing state for
// one epoch group: NonceTreeSize leaves, a Merkle commitment over
// their public halves, and a cursor tracking which leaves have been
// revealed.
type NonceTree struct {
	GroupID       []byte
	ParticipantID int
	Pairs         []*NoncePair
	tree          *merkle.Tree
	Root          [32]byte
	offset        int
}

func leafHash(index int, d, e *curve.Point) [32]byte {
	dx, dy := d.XY()
	ex, ey := e.XY()
	ib := idBytes32(index)
	return curve.H4(ib[:], dx[:], dy[:], ex[:], ey[:])
}

func idBytes32(id int) [4]byte {
	var b [4]byte
	b[0] = byte(id >> 24)
	b[1] = byte(id >> 16)
	b[2] = byte(id >> 8)
	b[3] = byte(id)
	return b
}

// GenerateNonceTree samples NonceTreeSize fresh nonce pairs bound to
// the participant's secret share via H3(random, secret), and builds
// the Merkle commitment over their public leaves. Per spec.md §4.3,
// the secret halves (d_i, e_i) are retained locally; only Root is
// broadcast.
func GenerateNonceTree(participantID int, secretShare *curve.Scalar, groupID []byte) (*NonceTree, error) {
	pairs := make([]*NoncePair, NonceTreeSize)
	leaves := make([][32]byte, NonceTreeSize)

	secretBytes := secretShare.Bytes()
	for i := 0; i < NonceTreeSize; i++ {
		rd := make([]byte, 32)
		re := make([]byte, 32)
		if _, err := rand.Read(rd); err != nil {
			return nil, fmt.Errorf("frost: sampling nonce randomness at leaf %d: %w", i, err)
		}
		if _, err := rand.Read(re); err != nil {
			return nil, fmt.Errorf("frost: sampling nonce randomness at leaf %d: %w", i, err)
		}

		d := curve.H3(rd, secretBytes)
		e := curve.H3(re, secretBytes)
		dp := curve.ScalarBaseMult(d)
		ep := curve.ScalarBaseMult(e)

		pairs[i] = &NoncePair{D: d, E: e, Dp: dp, Ep: ep}
		leaves[i] = leafHash(i, dp, ep)
	}

	t, err := merkle.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("frost: building nonce tree: %w", err)
	}

	return &NonceTree{
		GroupID:       groupID,
		ParticipantID: participantID,
		Pairs:         pairs,
		tree:          t,
		Root:          t.Root,
	}, nil
}

// ErrNoncesExhausted is returned by Reveal once every leaf in the tree
// has already been revealed.
var ErrNoncesExhausted = fmt.Errorf("frost: nonce tree exhausted")

// ErrLeafReused is returned if a caller attempts to reveal the same
// leaf index twice — the binding invariant spec.md §4.3 requires
// ("never reveal a leaf twice").
var ErrLeafReused = fmt.Errorf("frost: nonce leaf already revealed")

// Remaining reports how many unrevealed leaves remain.
func (nt *NonceTree) Remaining() int {
	count := 0
	for _, p := range nt.Pairs {
		if !p.used {
			count++
		}
	}
	return count
}

// Next advances the cursor to the next unused leaf and reveals it,
// returning its index, the public commitments, and an inclusion proof
// against Root. The caller is responsible for publishing (index, Dp,
// Ep, proof) and retaining the private pair for signing.
func (nt *NonceTree) Next() (index int, pair *NoncePair, proof *merkle.Proof, err error) {
	for nt.offset < len(nt.Pairs) {
		i := nt.offset
		nt.offset++
		if nt.Pairs[i].used {
			continue
		}
		nt.Pairs[i].used = true
		proof, err = nt.tree.Prove(i)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("frost: proving nonce leaf %d: %w", i, err)
		}
		return i, nt.Pairs[i], proof, nil
	}
	return 0, nil, nil, ErrNoncesExhausted
}

// Reveal reveals a specific leaf by index, erroring if it was already
// revealed (spec.md §4.3 "never reveal a leaf twice").
func (nt *NonceTree) Reveal(index int) (*NoncePair, *merkle.Proof, error) {
	if index < 0 || index >= len(nt.Pairs) {
		return nil, nil, fmt.Errorf("frost: nonce leaf index %d out of range", index)
	}
	if nt.Pairs[index].used {
		return nil, nil, ErrLeafReused
	}
	nt.Pairs[index].used = true
	proof, err := nt.tree.Prove(index)
	if err != nil {
		return nil, nil, fmt.Errorf("frost: proving nonce leaf %d: %w", index, err)
	}
	return nt.Pairs[index], proof, nil
}

// VerifyLeaf checks that (index, D, E) is consistent with proof
// against the published Root, without requiring access to the full
// tree — used by peers who only ever see the root and revealed leaves.
func VerifyLeaf(root [32]byte, index int, d, e *curve.Point, proof *merkle.Proof) bool {
	if proof == nil || proof.LeafIndex != index {
		return false
	}
	expected := leafHash(index, d, e)
	if expected != proof.Leaf {
		return false
	}
	return merkle.Verify(proof, root)
}
