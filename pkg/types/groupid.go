package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shieldnet/validator-core/pkg/curve"
	"github.com/shieldnet/validator-core/pkg/merkle"
)

// groupIDMask clears the low 64 bits of a keccak digest, reserving
// them for runtime tagging (spec.md §3 Group definition).
var groupIDMask = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// ComputeGroupID implements spec.md §3:
// groupId = keccak(participantsRoot ∥ count ∥ threshold ∥ context), masked
// to clear the low 64 bits.
func ComputeGroupID(participantsRoot [32]byte, count, threshold int, context [32]byte) [32]byte {
	var countBytes, thresholdBytes [8]byte
	binary.BigEndian.PutUint64(countBytes[:], uint64(count))
	binary.BigEndian.PutUint64(thresholdBytes[:], uint64(threshold))

	digest := curve.Keccak256(participantsRoot[:], countBytes[:], thresholdBytes[:], context[:])

	var out [32]byte
	copy(out[:], digest)
	for i := range out {
		out[i] &= groupIDMask[i]
	}
	return out
}

// GenesisContext returns the un-salted genesis context (all zero).
func GenesisContext() [32]byte {
	return [32]byte{}
}

// SaltedGenesisContext returns keccak("genesis" ∥ salt) for a
// non-zero genesis salt.
func SaltedGenesisContext(salt [32]byte) [32]byte {
	digest := curve.Keccak256([]byte("genesis"), salt[:])
	var out [32]byte
	copy(out[:], digest)
	return out
}

// EpochContext packs (version=0, consensusAddress, epoch) into the
// 32-byte context used for post-genesis epochs.
func EpochContext(consensusAddress common.Address, epoch uint64) [32]byte {
	var buf [32]byte
	// buf[0] is the version byte, fixed at 0.
	copy(buf[1:21], consensusAddress.Bytes())
	binary.BigEndian.PutUint64(buf[24:32], epoch)
	return buf
}

// ParticipantsRoot builds the Merkle root of a committee's addresses,
// ordered by participant id, for use in Group.ParticipantsRoot.
func ParticipantsRoot(participants []Participant) ([32]byte, error) {
	leaves := make([][32]byte, len(participants))
	for i, p := range participants {
		leaves[i] = curve.H4(p.Address.Bytes())
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return [32]byte{}, err
	}
	return tree.Root, nil
}
