package merkle

import (
	wmt "github.com/wealdtech/go-merkletree/v2"
)

// ToWireProof converts a Proof into wealdtech/go-merkletree's wire
// shape so it can ride over the same gob/JSON encoders the rest of
// the coordinator-facing wire format uses, without hand-rolling a
// second serialisation format just for Merkle proofs.
func ToWireProof(p *Proof) *wmt.Proof {
	hashes := make([][]byte, len(p.Siblings))
	for i, s := range p.Siblings {
		b := make([]byte, 32)
		copy(b, s[:])
		hashes[i] = b
	}
	return &wmt.Proof{Hashes: hashes, Index: uint64(p.LeafIndex)}
}

// FromWireProof reconstructs a Proof from its wire form given the
// original leaf value.
func FromWireProof(w *wmt.Proof, leaf [32]byte) *Proof {
	siblings := make([][32]byte, len(w.Hashes))
	for i, h := range w.Hashes {
		var s [32]byte
		copy(s[:], h)
		siblings[i] = s
	}
	return &Proof{LeafIndex: int(w.Index), Leaf: leaf, Siblings: siblings}
}
