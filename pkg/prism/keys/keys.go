// Package keys manages prism key pairs: generation, versioned encodings and
// deterministic derivation from an external wallet signature.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
)

// EncodingVersion prefixes every versioned key encoding.
const EncodingVersion byte = 0x01

const (
	// PrivateKeySize is the length of a versioned private key encoding.
	PrivateKeySize = 1 + curve.ScalarSize
	// PublicKeySize is the length of a versioned public key encoding.
	PublicKeySize = 1 + curve.PointSize
	// FingerprintSize is the length of a public key fingerprint.
	FingerprintSize = sha256.Size
)

// KeyPair is one identity's key material. Public is always Private*G.
type KeyPair struct {
	Private *curve.Scalar
	Public  *curve.Point
}

// Generate returns a uniformly random key pair.
func Generate() (*KeyPair, error) {
	sk, err := curve.RandomScalar()
	if err != nil {
		return nil, prism.Wrap("keys.Generate", err)
	}
	return FromPrivate(sk)
}

// FromPrivate rebuilds the key pair for sk.
func FromPrivate(sk *curve.Scalar) (*KeyPair, error) {
	if sk == nil || sk.IsZero() {
		return nil, prism.Errorf("keys.FromPrivate", "%w: zero private key", prism.ErrInvalidKeyEncoding)
	}
	pk, err := curve.ScalarBaseMult(sk)
	if err != nil {
		return nil, prism.Wrap("keys.FromPrivate", err)
	}
	return &KeyPair{Private: sk, Public: pk}, nil
}

// Zeroize clears the private half of the pair.
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	kp.Private.Zeroize()
}

// EncodePrivateKey returns version || scalar.
func EncodePrivateKey(sk *curve.Scalar) []byte {
	out := make([]byte, 0, PrivateKeySize)
	out = append(out, EncodingVersion)
	return append(out, sk.Bytes()...)
}

// DecodePrivateKey accepts the versioned encoding or a raw 32-byte scalar.
func DecodePrivateKey(b []byte) (*curve.Scalar, error) {
	raw := b
	switch len(b) {
	case PrivateKeySize:
		if b[0] != EncodingVersion {
			return nil, prism.Errorf("keys.DecodePrivateKey", "%w: unknown version %d", prism.ErrInvalidKeyEncoding, b[0])
		}
		raw = b[1:]
	case curve.ScalarSize:
	default:
		return nil, prism.Errorf("keys.DecodePrivateKey", "%w: got %d bytes", prism.ErrInvalidKeyEncoding, len(b))
	}
	sk, err := curve.ScalarFromBytes(raw)
	if err != nil {
		return nil, prism.Wrap("keys.DecodePrivateKey", err)
	}
	if sk.IsZero() {
		return nil, prism.Errorf("keys.DecodePrivateKey", "%w: zero private key", prism.ErrInvalidKeyEncoding)
	}
	return sk, nil
}

// EncodePublicKey returns version || compressed point.
func EncodePublicKey(pk *curve.Point) []byte {
	out := make([]byte, 0, PublicKeySize)
	out = append(out, EncodingVersion)
	return append(out, pk.Bytes()...)
}

// DecodePublicKey accepts the versioned encoding or a raw SEC1 point, either
// compressed or uncompressed (the 04-prefixed form wallets export).
func DecodePublicKey(b []byte) (*curve.Point, error) {
	raw := b
	if len(b) == PublicKeySize {
		if b[0] != EncodingVersion {
			return nil, prism.Errorf("keys.DecodePublicKey", "%w: unknown version %d", prism.ErrInvalidKeyEncoding, b[0])
		}
		raw = b[1:]
	}
	pk, err := curve.PointFromBytes(raw)
	if err != nil {
		return nil, prism.Wrap("keys.DecodePublicKey", err)
	}
	return pk, nil
}

// ParsePrivateKeyHex decodes a hex private key with an optional 0x prefix.
func ParsePrivateKeyHex(s string) (*curve.Scalar, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, prism.Errorf("keys.ParsePrivateKeyHex", "%w: %v", prism.ErrInvalidKeyEncoding, err)
	}
	defer prism.ZeroizeBytes(b)
	return DecodePrivateKey(b)
}

// ParsePublicKeyHex decodes a hex public key with an optional 0x prefix.
func ParsePublicKeyHex(s string) (*curve.Point, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, prism.Errorf("keys.ParsePublicKeyHex", "%w: %v", prism.ErrInvalidKeyEncoding, err)
	}
	return DecodePublicKey(b)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// Fingerprint identifies a public key without revealing it in full. It is
// stable across encodings of the same point.
func Fingerprint(pk *curve.Point) []byte {
	h := sha256.New()
	h.Write([]byte("prism/keys/v1/fingerprint"))
	h.Write(pk.Bytes())
	return h.Sum(nil)
}

// ShortFingerprint is the first eight fingerprint bytes in hex, for logs.
func ShortFingerprint(pk *curve.Point) string {
	return hex.EncodeToString(Fingerprint(pk)[:8])
}
