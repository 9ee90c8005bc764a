package pre

import (
	"crypto/subtle"
	"fmt"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
)

const (
	// CapsuleVersion is the current capsule encoding version.
	CapsuleVersion byte = 0x01

	// CheckSize is the length of the capsule key-check tag.
	CheckSize = 32

	// CapsuleSize is the length of an encoded capsule:
	// version || flags || E || V || s || X || check.
	CapsuleSize = 2 + 3*curve.PointSize + curve.ScalarSize + CheckSize

	flagReEncrypted byte = 0x01
)

// Capsule is the key-encapsulation value attached to one encrypted payload.
// Capsules are immutable; re-encryption returns a new capsule.
type Capsule struct {
	e *curve.Point
	v *curve.Point
	s *curve.Scalar
	// x is the delegation point, set only on re-encrypted capsules.
	x     *curve.Point
	check [CheckSize]byte
}

// IsReEncrypted reports whether the capsule has been transformed for a
// delegatee.
func (c *Capsule) IsReEncrypted() bool {
	return c.x != nil
}

// Bytes returns the fixed-width encoding of the capsule.
func (c *Capsule) Bytes() []byte {
	out := make([]byte, 0, CapsuleSize)
	flags := byte(0)
	if c.IsReEncrypted() {
		flags |= flagReEncrypted
	}
	out = append(out, CapsuleVersion, flags)
	out = append(out, c.e.Bytes()...)
	out = append(out, c.v.Bytes()...)
	out = append(out, c.s.Bytes()...)
	if c.x != nil {
		out = append(out, c.x.Bytes()...)
	} else {
		out = append(out, make([]byte, curve.PointSize)...)
	}
	return append(out, c.check[:]...)
}

// Equal reports whether two capsules have identical encodings.
func (c *Capsule) Equal(other *Capsule) bool {
	if c == nil || other == nil {
		return c == other
	}
	return subtle.ConstantTimeCompare(c.Bytes(), other.Bytes()) == 1
}

// CapsuleFromBytes decodes a capsule. Every malformed input fails with
// prism.ErrDeserialization before any protocol arithmetic runs.
func CapsuleFromBytes(b []byte) (*Capsule, error) {
	const op = "pre.CapsuleFromBytes"
	if len(b) != CapsuleSize {
		return nil, prism.Errorf(op, "%w: got %d bytes, want %d", prism.ErrDeserialization, len(b), CapsuleSize)
	}
	if b[0] != CapsuleVersion {
		return nil, prism.Errorf(op, "%w: unknown capsule version %d", prism.ErrDeserialization, b[0])
	}
	flags := b[1]
	if flags&^flagReEncrypted != 0 {
		return nil, prism.Errorf(op, "%w: unknown flags %d", prism.ErrDeserialization, flags)
	}

	r := reader{buf: b[2:]}
	e, err := r.point("E")
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	v, err := r.point("V")
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	s, err := r.scalar("s")
	if err != nil {
		return nil, prism.Wrap(op, err)
	}

	c := &Capsule{e: e, v: v, s: s}
	xBytes := r.next(curve.PointSize)
	if flags&flagReEncrypted != 0 {
		x, err := curve.PointFromBytes(xBytes)
		if err != nil {
			return nil, prism.Errorf(op, "%w: X: %v", prism.ErrDeserialization, err)
		}
		c.x = x
	} else if !allZero(xBytes) {
		return nil, prism.Errorf(op, "%w: delegation point on untransformed capsule", prism.ErrDeserialization)
	}
	copy(c.check[:], r.next(CheckSize))
	return c, nil
}

type reader struct {
	buf []byte
}

func (r *reader) next(n int) []byte {
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) point(name string) (*curve.Point, error) {
	p, err := curve.PointFromBytes(r.next(curve.PointSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", prism.ErrDeserialization, name, err)
	}
	return p, nil
}

func (r *reader) scalar(name string) (*curve.Scalar, error) {
	s, err := curve.ScalarFromBytes(r.next(curve.ScalarSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", prism.ErrDeserialization, name, err)
	}
	return s, nil
}

func allZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
