package pre

import (
	"crypto/subtle"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
)

const (
	// ReEncryptionKeyVersion is the current re-encryption key encoding
	// version.
	ReEncryptionKeyVersion byte = 0x01

	// ReEncryptionKeySize is the length of an encoded re-encryption key:
	// version || rk || X || delegatee fingerprint.
	ReEncryptionKeySize = 1 + curve.ScalarSize + curve.PointSize + keys.FingerprintSize
)

// ReEncryptionKey is a one-way delegation token from one delegator to one
// delegatee. It lets its holder transform capsules but not open them.
type ReEncryptionKey struct {
	rk        *curve.Scalar
	x         *curve.Point
	delegatee []byte
}

// Delegatee returns the fingerprint of the public key this token is bound
// to (see keys.Fingerprint).
func (k *ReEncryptionKey) Delegatee() []byte {
	out := make([]byte, len(k.delegatee))
	copy(out, k.delegatee)
	return out
}

// BoundTo reports whether the token was generated for pk.
func (k *ReEncryptionKey) BoundTo(pk *curve.Point) bool {
	return subtle.ConstantTimeCompare(k.delegatee, keys.Fingerprint(pk)) == 1
}

// Bytes returns the fixed-width encoding of the token.
func (k *ReEncryptionKey) Bytes() []byte {
	out := make([]byte, 0, ReEncryptionKeySize)
	out = append(out, ReEncryptionKeyVersion)
	out = append(out, k.rk.Bytes()...)
	out = append(out, k.x.Bytes()...)
	return append(out, k.delegatee...)
}

// Zeroize clears the delegation scalar.
func (k *ReEncryptionKey) Zeroize() {
	if k == nil {
		return
	}
	k.rk.Zeroize()
}

// ReEncryptionKeyFromBytes decodes a re-encryption key.
func ReEncryptionKeyFromBytes(b []byte) (*ReEncryptionKey, error) {
	const op = "pre.ReEncryptionKeyFromBytes"
	if len(b) != ReEncryptionKeySize {
		return nil, prism.Errorf(op, "%w: got %d bytes, want %d", prism.ErrDeserialization, len(b), ReEncryptionKeySize)
	}
	if b[0] != ReEncryptionKeyVersion {
		return nil, prism.Errorf(op, "%w: unknown version %d", prism.ErrDeserialization, b[0])
	}
	r := reader{buf: b[1:]}
	rk, err := r.scalar("rk")
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	if rk.IsZero() {
		return nil, prism.Errorf(op, "%w: zero delegation scalar", prism.ErrDeserialization)
	}
	x, err := r.point("X")
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	delegatee := make([]byte, keys.FingerprintSize)
	copy(delegatee, r.next(keys.FingerprintSize))
	return &ReEncryptionKey{rk: rk, x: x, delegatee: delegatee}, nil
}
