// Package merkle implements a generic binary Merkle tree used both for
// a group's participants root and for a group's nonce-tree root.
// Generalised from the teacher's pkg/merkle (which built a tree over
// acknowledgement leaves only) to accept arbitrary pre-hashed leaves.
package merkle

import (
	"fmt"

	"github.com/shieldnet/validator-core/pkg/curve"
)

// Tree is a binary Merkle tree over fixed 32-byte leaves, using
// keccak256 (via curve.H4) for both leaf-independent node hashing and
// duplicate-last-node padding of odd levels, matching the teacher's
// pkg/merkle.BuildMerkleTree behavior.
type Tree struct {
	Leaves [][32]byte
	Root   [32]byte
	levels [][][32]byte
}

// Build constructs a tree from already-hashed leaves. Leaves are used
// in the order given; callers that need a canonical order (e.g. the
// participants root, sorted by participant id) must sort before
// calling Build.
func Build(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("merkle: cannot build a tree from zero leaves")
	}

	levels := [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, curve.H4(left[:], right[:]))
		}
		levels = append(levels, next)
		current = next
	}

	return &Tree{Leaves: leaves, Root: current[0], levels: levels}, nil
}

// Proof is a Merkle inclusion proof: sibling hashes from leaf to root.
type Proof struct {
	LeafIndex int
	Leaf      [32]byte
	Siblings  [][32]byte
}

// Prove returns the inclusion proof for the leaf at index i.
func (t *Tree) Prove(i int) (*Proof, error) {
	if i < 0 || i >= len(t.Leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of bounds (%d leaves)", i, len(t.Leaves))
	}

	siblings := make([][32]byte, 0, len(t.levels)-1)
	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		cur := t.levels[level]
		siblingIdx := idx ^ 1
		if siblingIdx >= len(cur) {
			siblingIdx = idx
		}
		siblings = append(siblings, cur[siblingIdx])
		idx /= 2
	}

	return &Proof{LeafIndex: i, Leaf: t.Leaves[i], Siblings: siblings}, nil
}

// Verify recomputes the root along the proof path and compares it to root.
func Verify(p *Proof, root [32]byte) bool {
	if p == nil {
		return false
	}

	current := p.Leaf
	idx := p.LeafIndex
	for _, sibling := range p.Siblings {
		if idx%2 == 0 {
			current = curve.H4(current[:], sibling[:])
		} else {
			current = curve.H4(sibling[:], current[:])
		}
		idx /= 2
	}
	return current == root
}
