// Package curve wraps secp256k1 scalar and point arithmetic for the
// FROST engine. It follows the teacher's habit of wrapping a
// lower-level crypto library behind a small, error-returning API
// (pkg/crypto/bls.go wraps gnark-crypto's bls12-381 the same way this
// package wraps decred's secp256k1).
package curve

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// Order is the order n of the secp256k1 base point.
	Order, _ = new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

	// ErrInvalidScalar is returned when a scalar is not in [1, n).
	ErrInvalidScalar = errors.New("curve: scalar out of range")
)

// Scalar is an element of the secp256k1 scalar field.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalarFromBigInt reduces b mod n into a Scalar.
func NewScalarFromBigInt(b *big.Int) *Scalar {
	var s Scalar
	s.v.SetByteSlice(padTo32(new(big.Int).Mod(b, Order)))
	return &s
}

// NewScalarFromBytes interprets a 32-byte big-endian buffer mod n.
func NewScalarFromBytes(b []byte) *Scalar {
	var s Scalar
	s.v.SetByteSlice(b)
	return &s
}

// RandomScalar draws a uniformly random non-zero scalar using the
// supplied CSPRNG (spec.md §9 "Randomness": all cryptographic
// randomness routes through one abstraction so tests can seed it).
func RandomScalar(rng interface{ Read([]byte) (int, error) }) (*Scalar, error) {
	for {
		buf := make([]byte, 32)
		if _, err := rng.Read(buf); err != nil {
			return nil, err
		}
		s := NewScalarFromBytes(buf)
		if !s.IsZero() {
			return s, nil
		}
	}
}

// SystemRandomScalar is a convenience wrapper using crypto/rand.
func SystemRandomScalar() (*Scalar, error) {
	return RandomScalar(rand.Reader)
}

func (s *Scalar) IsZero() bool { return s.v.IsZero() }

func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

func (s *Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s.Bytes())
}

func (s *Scalar) Add(o *Scalar) *Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.Add(&o.v)
	return &r
}

func (s *Scalar) Sub(o *Scalar) *Scalar {
	neg := new(secp256k1.ModNScalar).Set(&o.v).Negate()
	var r Scalar
	r.v.Set(&s.v)
	r.v.Add(neg)
	return &r
}

func (s *Scalar) Mul(o *Scalar) *Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.Mul(&o.v)
	return &r
}

func (s *Scalar) Inverse() *Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.InverseValNonConst()
	return &r
}

func (s *Scalar) Equal(o *Scalar) bool {
	return s.v.Equals(&o.v)
}

// Point is an affine secp256k1 curve point.
type Point struct {
	p secp256k1.JacobianPoint
}

// BasePoint returns the generator g.
func BasePoint() *Point {
	one := NewScalarFromBigInt(big.NewInt(1))
	return ScalarBaseMult(one)
}

// ScalarBaseMult computes g*k.
func ScalarBaseMult(k *Scalar) *Point {
	var result secp256k1.JacobianPoint
	kBytes := k.v.Bytes()
	secp256k1.ScalarBaseMultNonConst(scalarFromBytes(kBytes[:]), &result)
	result.ToAffine()
	return &Point{p: result}
}

// ScalarMult computes p*k.
func (pt *Point) ScalarMult(k *Scalar) *Point {
	var result secp256k1.JacobianPoint
	kBytes := k.v.Bytes()
	affine := pt.p
	affine.ToAffine()
	secp256k1.ScalarMultNonConst(scalarFromBytes(kBytes[:]), &affine, &result)
	result.ToAffine()
	return &Point{p: result}
}

func (pt *Point) Add(o *Point) *Point {
	var result secp256k1.JacobianPoint
	a := pt.p
	b := o.p
	a.ToAffine()
	b.ToAffine()
	secp256k1.AddNonConst(&a, &b, &result)
	result.ToAffine()
	return &Point{p: result}
}

func (pt *Point) Negate() *Point {
	a := pt.p
	a.ToAffine()
	a.Y.Negate(1)
	a.Y.Normalize()
	return &Point{p: a}
}

func (pt *Point) Equal(o *Point) bool {
	a := pt.p
	b := o.p
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

func (pt *Point) IsInfinity() bool {
	a := pt.p
	a.ToAffine()
	return a.X.IsZero() && a.Y.IsZero()
}

// CompressedBytes returns the 33-byte SEC1 compressed encoding.
func (pt *Point) CompressedBytes() []byte {
	a := pt.p
	a.ToAffine()
	pub := secp256k1.NewPublicKey(&a.X, &a.Y)
	return pub.SerializeCompressed()
}

// PointFromCompressedBytes decodes a 33-byte SEC1 compressed point.
func PointFromCompressedBytes(b []byte) (*Point, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	p.ToAffine()
	return &Point{p: p}, nil
}

// XY returns the affine coordinates as big-endian 32-byte values,
// used by the EIP-712 typed hash of EpochRollover (groupKeyX/groupKeyY).
func (pt *Point) XY() (x, y [32]byte) {
	a := pt.p
	a.ToAffine()
	xb := a.X.Bytes()
	yb := a.Y.Bytes()
	copy(x[:], xb[:])
	copy(y[:], yb[:])
	return
}

func scalarFromBytes(b []byte) *secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetByteSlice(b)
	return &s
}

func padTo32(b *big.Int) []byte {
	raw := b.Bytes()
	if len(raw) >= 32 {
		return raw[len(raw)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out
}
