package pre

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
)

// KeySize is the length of the symmetric key a capsule encodes.
const KeySize = 32

const (
	domainH2    = "prism/pre/v1/h2"
	domainH3    = "prism/pre/v1/h3"
	domainCheck = "prism/pre/v1/check"
	kdfSalt     = "prism/pre/v1/kdf"
	kdfInfo     = "symmetric-key"
)

// GenerateKeyPair returns a fresh key pair for use as a PRE identity.
func GenerateKeyPair() (*keys.KeyPair, error) {
	return keys.Generate()
}

// Encapsulate creates a capsule for pk and returns it with the symmetric key
// it encodes. The key is the HKDF-SHA256 output over the shared point.
func Encapsulate(pk *curve.Point) (*Capsule, []byte, error) {
	const op = "pre.Encapsulate"
	if pk == nil {
		return nil, nil, prism.Errorf(op, "%w: nil public key", prism.ErrInvalidParameter)
	}
	r, err := curve.RandomScalar()
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	defer r.Zeroize()
	u, err := curve.RandomScalar()
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	defer u.Zeroize()

	e, err := curve.ScalarBaseMult(r)
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	v, err := curve.ScalarBaseMult(u)
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	rh := r.Mul(h2(e, v))
	defer rh.Zeroize()
	s := u.Add(rh)

	ru := r.Add(u)
	defer ru.Zeroize()
	shared, err := pk.Mul(ru)
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	key, err := deriveKey(shared)
	if err != nil {
		return nil, nil, prism.Wrap(op, err)
	}

	c := &Capsule{e: e, v: v, s: s}
	c.check = checkTag(key)
	return c, key, nil
}

// Decapsulate recovers the symmetric key from c with the private key of its
// current recipient: the original owner for an untransformed capsule, the
// delegatee for a re-encrypted one. Any other key fails with
// prism.ErrDecapsulation.
func Decapsulate(c *Capsule, sk *curve.Scalar) ([]byte, error) {
	const op = "pre.Decapsulate"
	if c == nil || sk == nil || sk.IsZero() {
		return nil, prism.Errorf(op, "%w: nil capsule or private key", prism.ErrInvalidParameter)
	}

	var shared *curve.Point
	if c.IsReEncrypted() {
		pk, err := curve.ScalarBaseMult(sk)
		if err != nil {
			return nil, prism.Wrap(op, err)
		}
		dh, err := c.x.Mul(sk)
		if err != nil {
			return nil, prism.Wrap(op, err)
		}
		d := h3(c.x, pk, dh)
		ev, err := c.e.Add(c.v)
		if err != nil {
			return nil, prism.Errorf(op, "%w: %v", prism.ErrInvalidCapsule, err)
		}
		if shared, err = ev.Mul(d); err != nil {
			return nil, prism.Wrap(op, err)
		}
	} else {
		if err := c.verify(); err != nil {
			return nil, prism.Wrap(op, err)
		}
		ev, err := c.e.Add(c.v)
		if err != nil {
			return nil, prism.Errorf(op, "%w: %v", prism.ErrInvalidCapsule, err)
		}
		if shared, err = ev.Mul(sk); err != nil {
			return nil, prism.Wrap(op, err)
		}
	}

	key, err := deriveKey(shared)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	tag := checkTag(key)
	if subtle.ConstantTimeCompare(tag[:], c.check[:]) != 1 {
		prism.ZeroizeBytes(key)
		return nil, prism.Errorf(op, "%w: key does not match capsule recipient", prism.ErrDecapsulation)
	}
	return key, nil
}

// GenerateReEncryptionKey derives the token that lets a proxy transform the
// delegator's capsules for the delegatee. It needs the delegator's private
// key and binds to exactly one delegatee public key.
func GenerateReEncryptionKey(delegator *curve.Scalar, delegatee *curve.Point) (*ReEncryptionKey, error) {
	const op = "pre.GenerateReEncryptionKey"
	if delegator == nil || delegator.IsZero() || delegatee == nil {
		return nil, prism.Errorf(op, "%w: nil key", prism.ErrInvalidParameter)
	}
	x, err := curve.RandomScalar()
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	defer x.Zeroize()

	xG, err := curve.ScalarBaseMult(x)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	dh, err := delegatee.Mul(x)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	dInv, err := h3(xG, delegatee, dh).Inverse()
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	return &ReEncryptionKey{
		rk:        delegator.Mul(dInv),
		x:         xG,
		delegatee: keys.Fingerprint(delegatee),
	}, nil
}

// ReEncryptCapsule transforms an owner's capsule for the delegatee rk was
// generated for. It runs on the proxy and uses nothing but public values and
// rk. The input capsule is left untouched.
func ReEncryptCapsule(c *Capsule, rk *ReEncryptionKey) (*Capsule, error) {
	const op = "pre.ReEncryptCapsule"
	if c == nil || rk == nil {
		return nil, prism.Errorf(op, "%w: nil capsule or re-encryption key", prism.ErrInvalidParameter)
	}
	if c.IsReEncrypted() {
		return nil, prism.Errorf(op, "%w", prism.ErrAlreadyReEncrypted)
	}
	if err := c.verify(); err != nil {
		return nil, prism.Wrap(op, err)
	}
	e, err := c.e.Mul(rk.rk)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	v, err := c.v.Mul(rk.rk)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	return &Capsule{e: e, v: v, s: c.s, x: rk.x, check: c.check}, nil
}

// verify checks s*G == V + H2(E, V)*E on an untransformed capsule.
func (c *Capsule) verify() error {
	lhs, err := curve.ScalarBaseMult(c.s)
	if err != nil {
		return prism.Errorf("Capsule.verify", "%w: %v", prism.ErrInvalidCapsule, err)
	}
	he, err := c.e.Mul(h2(c.e, c.v))
	if err != nil {
		return prism.Errorf("Capsule.verify", "%w: %v", prism.ErrInvalidCapsule, err)
	}
	rhs, err := c.v.Add(he)
	if err != nil {
		return prism.Errorf("Capsule.verify", "%w: %v", prism.ErrInvalidCapsule, err)
	}
	if !lhs.Equal(rhs) {
		return prism.Errorf("Capsule.verify", "%w: proof does not hold", prism.ErrInvalidCapsule)
	}
	return nil
}

func h2(e, v *curve.Point) *curve.Scalar {
	return curve.HashToScalar(domainH2, e.Bytes(), v.Bytes())
}

func h3(x, pk, dh *curve.Point) *curve.Scalar {
	return curve.HashToScalar(domainH3, x.Bytes(), pk.Bytes(), dh.Bytes())
}

func deriveKey(shared *curve.Point) ([]byte, error) {
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, shared.Bytes(), []byte(kdfSalt), []byte(kdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, prism.Errorf("deriveKey", "hkdf: %w", err)
	}
	return key, nil
}

func checkTag(key []byte) [CheckSize]byte {
	h := sha256.New()
	h.Write([]byte(domainCheck))
	h.Write(key)
	var tag [CheckSize]byte
	copy(tag[:], h.Sum(nil))
	return tag
}
