// Package curve provides secp256k1 scalar and point arithmetic for the prism
// proxy re-encryption scheme.
//
// Scalar and Point are immutable: every operation returns a new value. Both
// have a single fixed-width encoding (32-byte big-endian scalars, 33-byte
// SEC1 compressed points) so that values produced by one build decode
// identically in another.
//
// # Common Operations
//
//	k, err := curve.RandomScalar()
//	P, err := curve.ScalarBaseMult(k)      // P = k*G
//	Q, err := P.Mul(k)                     // Q = k*P
//	R, err := curve.PointFromX(xBytes)     // even-y point with the given x
//
// Point multiplication uses btcec's variable-time routines. Callers that
// need constant-time behavior for long-lived secrets must not expose timing
// of these operations to an adversary.
package curve
