package keys

import (
	"crypto/sha256"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
)

const (
	deriveSalt        = "prism/keys/v1/derive"
	keyPairInfo       = "pre-key-pair"
	masterSecretSalt  = "prism/keys/v1/master"
	masterSecretInfo  = "master-secret"
	masterSecretSize  = 32
	signatureXSegment = 32
)

// DeriveKeyPair deterministically derives a key pair from a wallet
// signature, so an identity can recover its PRE keys by signing the same
// message again. 64 bytes of HKDF-SHA256 output are reduced mod n.
func DeriveKeyPair(signature []byte) (*KeyPair, error) {
	if len(signature) == 0 {
		return nil, prism.Errorf("keys.DeriveKeyPair", "%w: empty signature", prism.ErrInvalidParameter)
	}
	okm := make([]byte, 64)
	defer prism.ZeroizeBytes(okm)
	r := hkdf.New(sha256.New, signature, []byte(deriveSalt), []byte(keyPairInfo))
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, prism.Errorf("keys.DeriveKeyPair", "hkdf: %w", err)
	}
	sk := curve.ScalarFromBigInt(new(big.Int).SetBytes(okm))
	if sk.IsZero() {
		return nil, prism.Errorf("keys.DeriveKeyPair", "%w: derived zero scalar", prism.ErrInvalidParameter)
	}
	return FromPrivate(sk)
}

// DeriveMasterSecret derives a 32-byte owner secret from a wallet
// signature. The first 32 signature bytes are read as an x coordinate,
// lifted to a point P, and multiplied by themselves as a scalar; the x
// coordinate of the result is then expanded with HKDF-SHA256.
//
// A signature whose leading 32 bytes are not a valid x coordinate fails
// with prism.ErrInvalidCurvePoint. The caller must ask for a new signature
// rather than tweak the input.
func DeriveMasterSecret(signature []byte) ([]byte, error) {
	if len(signature) < signatureXSegment {
		return nil, prism.Errorf("keys.DeriveMasterSecret", "%w: signature shorter than %d bytes", prism.ErrInvalidParameter, signatureXSegment)
	}
	x := signature[:signatureXSegment]
	p, err := curve.PointFromX(x)
	if err != nil {
		return nil, prism.Wrap("keys.DeriveMasterSecret", err)
	}
	k := curve.ScalarFromBigInt(new(big.Int).SetBytes(x))
	defer k.Zeroize()
	q, err := p.Mul(k)
	if err != nil {
		return nil, prism.Wrap("keys.DeriveMasterSecret", err)
	}

	secret := make([]byte, masterSecretSize)
	r := hkdf.New(sha256.New, q.X(), []byte(masterSecretSalt), []byte(masterSecretInfo))
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, prism.Errorf("keys.DeriveMasterSecret", "hkdf: %w", err)
	}
	return secret, nil
}
