package watermark

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

const (
	innerDomain = "prism/watermark/v1/inner"
	outerDomain = "prism/watermark/v1/outer"
)

// digest is F(secret, key) = H(outer || secret || H(inner || secret || key)).
type digest [sha256.Size]byte

func oracle(secret Secret, key string) digest {
	var lenbuf [8]byte
	binary.BigEndian.PutUint64(lenbuf[:], uint64(len(secret)))

	inner := sha256.New()
	inner.Write([]byte(innerDomain))
	inner.Write(lenbuf[:])
	inner.Write(secret)
	inner.Write([]byte(key))

	outer := sha256.New()
	outer.Write([]byte(outerDomain))
	outer.Write(lenbuf[:])
	outer.Write(secret)
	outer.Write(inner.Sum(nil))

	var d digest
	outer.Sum(d[:0])
	return d
}

func (d digest) lane(i int) uint64 {
	return binary.BigEndian.Uint64(d[i*8 : i*8+8])
}

// position is where, if anywhere, a record carries its mark.
type position struct {
	selected bool
	attr     int
	bit      uint
	want     int64
}

// locate runs the oracle for one record with n attributes.
func (m *Marker) locate(secret Secret, key string, n int) position {
	if n == 0 {
		return position{}
	}
	d := oracle(secret, key)
	if !m.selects(d.lane(0)) {
		return position{}
	}
	return position{
		selected: true,
		attr:     int(d.lane(1) % uint64(n)),
		bit:      uint(d.lane(2) % uint64(m.params.L)),
		want:     int64(d.lane(3) & 1),
	}
}

func (m *Marker) selects(lane uint64) bool {
	switch m.params.Selection {
	case SelectFraction:
		if m.cutoff == math.MaxUint64 {
			return true
		}
		return lane < m.cutoff
	default:
		return lane%m.modulus == 0
	}
}

func bitAt(v int64, bit uint) int64 {
	return (v >> bit) & 1
}

func setBit(v int64, bit uint, b int64) int64 {
	return v&^(1<<bit) | b<<bit
}
