package curve

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// keccak256 matches go-ethereum's crypto.Keccak256 without importing
// go-ethereum here, keeping pkg/curve dependency-light; the domain
// hashes below are otherwise identical in shape to the teacher's
// pkg/crypto domain-hash helpers (ethcrypto.Keccak256-based).
func keccak256(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

func hashToScalar(domain byte, chunks ...[]byte) *Scalar {
	all := make([][]byte, 0, len(chunks)+1)
	all = append(all, []byte{domain})
	all = append(all, chunks...)
	digest := keccak256(all...)
	return NewScalarFromBigInt(new(big.Int).SetBytes(digest))
}

func hash32(domain byte, chunks ...[]byte) [32]byte {
	all := make([][]byte, 0, len(chunks)+1)
	all = append(all, []byte{domain})
	all = append(all, chunks...)
	digest := keccak256(all...)
	var out [32]byte
	copy(out[:], digest)
	return out
}

// Domain tags, arbitrary but fixed and distinct.
const (
	domainH1 byte = 0x01 // binding factor (rho)
	domainH2 byte = 0x02 // group challenge c
	domainH3 byte = 0x03 // nonce derivation
	domainH4 byte = 0x04 // merkle node / participants root
	domainH5 byte = 0x05 // keygen PoK challenge
	domainHDKG byte = 0x06
	domainHPoK byte = 0x07
)

func idBytes(id int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(id))
	return b
}

// H1 computes the binding factor rho_i for signer id over the group
// public key, sorted signer ids, all (D,E) commitments, and the message.
func H1(groupPubKey []byte, sortedSignerIDs []int, commitments [][]byte, message []byte, signerID int) *Scalar {
	chunks := [][]byte{groupPubKey}
	for _, id := range sortedSignerIDs {
		chunks = append(chunks, idBytes(id))
	}
	chunks = append(chunks, commitments...)
	chunks = append(chunks, message, idBytes(signerID))
	return hashToScalar(domainH1, chunks...)
}

// H2 computes the group Schnorr challenge c = H2(R || Y || message).
func H2(R, Y, message []byte) *Scalar {
	return hashToScalar(domainH2, R, Y, message)
}

// H3 derives a nonce scalar from fresh randomness and the secret share.
func H3(random, secret []byte) *Scalar {
	return hashToScalar(domainH3, random, secret)
}

// H4 hashes two 32-byte Merkle children, or a leaf's encoding.
func H4(chunks ...[]byte) [32]byte {
	return hash32(domainH4, chunks...)
}

// H5 computes the KeyGen proof-of-knowledge challenge.
func H5(id int, c0 []byte, R []byte, groupTag []byte) *Scalar {
	return hashToScalar(domainH5, idBytes(id), c0, R, groupTag)
}

// HDKG coerces arbitrary randomness into a DKG polynomial coefficient.
func HDKG(random []byte) *Scalar {
	return hashToScalar(domainHDKG, random)
}

// HPoK coerces randomness into a proof-of-knowledge nonce k.
func HPoK(random []byte) *Scalar {
	return hashToScalar(domainHPoK, random)
}

// Keccak256 exposes the raw hash for callers (e.g. groupId derivation)
// that need it outside the H1..H5 domain-separated family.
func Keccak256(chunks ...[]byte) []byte {
	return keccak256(chunks...)
}
