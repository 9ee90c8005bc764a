package curve

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/prismdata/prism-go/pkg/prism"
)

const (
	// PointSize is the length of a SEC1 compressed point.
	PointSize = 33
	// UncompressedPointSize is the length of a SEC1 uncompressed point.
	UncompressedPointSize = 65
)

// Point is an affine secp256k1 point other than the point at infinity.
type Point struct {
	j btcec.JacobianPoint
}

func newAffine(j *btcec.JacobianPoint, op string) (*Point, error) {
	if isInfinity(j) {
		return nil, prism.Errorf(op, "%w: point at infinity", prism.ErrInvalidCurvePoint)
	}
	p := &Point{j: *j}
	p.j.ToAffine()
	return p, nil
}

func isInfinity(j *btcec.JacobianPoint) bool {
	x, y, z := j.X, j.Y, j.Z
	x.Normalize()
	y.Normalize()
	z.Normalize()
	return (x.IsZero() && y.IsZero()) || z.IsZero()
}

// Generator returns the curve base point G.
func Generator() *Point {
	var one btcec.ModNScalar
	one.SetInt(1)
	var j btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&one, &j)
	p := &Point{j: j}
	p.j.ToAffine()
	return p
}

// ScalarBaseMult returns k*G. A zero k is rejected because the result
// would be the point at infinity.
func ScalarBaseMult(k *Scalar) (*Point, error) {
	if k == nil || k.IsZero() {
		return nil, prism.Errorf("ScalarBaseMult", "%w: zero scalar", prism.ErrInvalidParameter)
	}
	var j btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k.v, &j)
	return newAffine(&j, "ScalarBaseMult")
}

// Mul returns k*p.
func (p *Point) Mul(k *Scalar) (*Point, error) {
	if k == nil || k.IsZero() {
		return nil, prism.Errorf("Point.Mul", "%w: zero scalar", prism.ErrInvalidParameter)
	}
	var j btcec.JacobianPoint
	btcec.ScalarMultNonConst(&k.v, &p.j, &j)
	return newAffine(&j, "Point.Mul")
}

// Add returns p + q. The sum of a point and its negation is rejected.
func (p *Point) Add(q *Point) (*Point, error) {
	var j btcec.JacobianPoint
	btcec.AddNonConst(&p.j, &q.j, &j)
	return newAffine(&j, "Point.Add")
}

// PointFromBytes decodes a SEC1 point, compressed (33 bytes) or
// uncompressed (65 bytes), verifying it lies on the curve.
func PointFromBytes(b []byte) (*Point, error) {
	if len(b) != PointSize && len(b) != UncompressedPointSize {
		return nil, prism.Errorf("PointFromBytes", "%w: got %d bytes, want %d or %d", prism.ErrInvalidKeyEncoding, len(b), PointSize, UncompressedPointSize)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, prism.Errorf("PointFromBytes", "%w: %v", prism.ErrInvalidCurvePoint, err)
	}
	var j btcec.JacobianPoint
	pub.AsJacobian(&j)
	return newAffine(&j, "PointFromBytes")
}

// PointFromX recovers the point with the given 32-byte big-endian x
// coordinate and an even y coordinate. It fails with ErrInvalidCurvePoint
// when x^3 + 7 has no square root mod p; callers must not retry with a
// perturbed x.
func PointFromX(x []byte) (*Point, error) {
	if len(x) != 32 {
		return nil, prism.Errorf("PointFromX", "%w: got %d bytes, want 32", prism.ErrInvalidKeyEncoding, len(x))
	}
	var fx btcec.FieldVal
	if overflow := fx.SetByteSlice(x); overflow {
		return nil, prism.Errorf("PointFromX", "%w: x exceeds field prime", prism.ErrInvalidCurvePoint)
	}
	fx.Normalize()
	var fy btcec.FieldVal
	if !btcec.DecompressY(&fx, false, &fy) {
		return nil, prism.Errorf("PointFromX", "%w: no y for x", prism.ErrInvalidCurvePoint)
	}
	var one btcec.FieldVal
	one.SetInt(1)
	j := btcec.MakeJacobianPoint(&fx, &fy, &one)
	return newAffine(&j, "PointFromX")
}

// Bytes returns the 33-byte SEC1 compressed encoding.
func (p *Point) Bytes() []byte {
	return p.publicKey().SerializeCompressed()
}

// UncompressedBytes returns the 65-byte SEC1 uncompressed encoding.
func (p *Point) UncompressedBytes() []byte {
	return p.publicKey().SerializeUncompressed()
}

// X returns the 32-byte big-endian x coordinate.
func (p *Point) X() []byte {
	b := p.j.X.Bytes()
	return b[:]
}

// Equal reports whether p and q are the same point.
func (p *Point) Equal(q *Point) bool {
	if p == nil || q == nil {
		return p == q
	}
	return p.j.X.Equals(&q.j.X) && p.j.Y.Equals(&q.j.Y)
}

func (p *Point) publicKey() *btcec.PublicKey {
	x, y := p.j.X, p.j.Y
	return btcec.NewPublicKey(&x, &y)
}
