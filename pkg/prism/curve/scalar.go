package curve

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/prismdata/prism-go/pkg/prism"
)

// ScalarSize is the length of an encoded Scalar.
const ScalarSize = 32

// Scalar is an element of the secp256k1 scalar field (integers mod n).
type Scalar struct {
	v btcec.ModNScalar
}

// Order returns a copy of the curve order n.
func Order() *big.Int {
	return new(big.Int).Set(btcec.S256().Params().N)
}

// RandomScalar returns a uniformly random non-zero scalar read from
// crypto/rand.
func RandomScalar() (*Scalar, error) {
	return randomScalar(rand.Reader)
}

func randomScalar(r io.Reader) (*Scalar, error) {
	var buf [ScalarSize]byte
	defer prism.ZeroizeBytes(buf[:])
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, prism.Errorf("RandomScalar", "read randomness: %w", err)
		}
		var s Scalar
		if overflow := s.v.SetByteSlice(buf[:]); overflow || s.v.IsZero() {
			continue
		}
		return &s, nil
	}
}

// ScalarFromBytes decodes a 32-byte big-endian scalar. Values >= n are
// rejected rather than reduced.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != ScalarSize {
		return nil, prism.Errorf("ScalarFromBytes", "%w: got %d bytes, want %d", prism.ErrInvalidKeyEncoding, len(b), ScalarSize)
	}
	var s Scalar
	if overflow := s.v.SetByteSlice(b); overflow {
		return nil, prism.Errorf("ScalarFromBytes", "%w: value exceeds curve order", prism.ErrInvalidKeyEncoding)
	}
	return &s, nil
}

// ScalarFromBigInt reduces x mod n.
func ScalarFromBigInt(x *big.Int) *Scalar {
	reduced := new(big.Int).Mod(x, btcec.S256().Params().N)
	var buf [ScalarSize]byte
	reduced.FillBytes(buf[:])
	var s Scalar
	s.v.SetByteSlice(buf[:])
	prism.ZeroizeBytes(buf[:])
	return &s
}

// Bytes returns the 32-byte big-endian encoding.
func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	return b[:]
}

// IsZero reports whether s is the zero scalar.
func (s *Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether s and other are the same scalar, in constant time.
func (s *Scalar) Equal(other *Scalar) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.v.Equals(&other.v)
}

// Add returns s + other mod n.
func (s *Scalar) Add(other *Scalar) *Scalar {
	var r Scalar
	r.v.Add2(&s.v, &other.v)
	return &r
}

// Mul returns s * other mod n.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	var r Scalar
	r.v.Mul2(&s.v, &other.v)
	return &r
}

// Inverse returns s^-1 mod n.
func (s *Scalar) Inverse() (*Scalar, error) {
	if s.v.IsZero() {
		return nil, prism.Errorf("Scalar.Inverse", "%w: zero has no inverse", prism.ErrInvalidParameter)
	}
	var r Scalar
	r.v.InverseValNonConst(&s.v)
	return &r, nil
}

// Zeroize clears the scalar in place. The scalar reads as zero afterwards.
func (s *Scalar) Zeroize() {
	if s == nil {
		return
	}
	s.v.Zero()
}

// String never prints the value; scalars are usually secret.
func (s *Scalar) String() string {
	return fmt.Sprintf("Scalar(%d bytes)", ScalarSize)
}
