package prism

import (
	"errors"
	"fmt"
)

// The error taxonomy shared by every prism package. All of these are local,
// deterministic failures: none is transient and none should be retried.
var (
	// ErrInvalidKeyEncoding indicates a scalar or key byte string of the wrong
	// length, version or range.
	ErrInvalidKeyEncoding = errors.New("prism: invalid key encoding")

	// ErrInvalidCurvePoint indicates bytes or coordinates that do not describe
	// a point on the curve, or the point at infinity where a key is required.
	ErrInvalidCurvePoint = errors.New("prism: invalid curve point")

	// ErrDeserialization indicates a malformed capsule, re-encryption key,
	// payload or ciphertext encoding.
	ErrDeserialization = errors.New("prism: malformed encoding")

	// ErrDecapsulation indicates the private key does not belong to the
	// capsule's current recipient.
	ErrDecapsulation = errors.New("prism: decapsulation failed")

	// ErrInvalidCapsule indicates a capsule whose validity proof does not hold.
	ErrInvalidCapsule = errors.New("prism: invalid capsule")

	// ErrAlreadyReEncrypted indicates an attempt to transform a capsule that
	// has already been transformed for a delegatee.
	ErrAlreadyReEncrypted = errors.New("prism: capsule already re-encrypted")

	// ErrAuthentication indicates the symmetric layer rejected the ciphertext.
	ErrAuthentication = errors.New("prism: ciphertext authentication failed")

	// ErrPadding indicates a decrypted block with invalid PKCS#7 padding.
	ErrPadding = errors.New("prism: invalid padding")

	// ErrInsufficientData indicates watermark detection found no records
	// selected for marking under the given secret and parameters.
	ErrInsufficientData = errors.New("prism: insufficient data")

	// ErrInvalidParameter indicates an invalid argument or configuration.
	ErrInvalidParameter = errors.New("prism: invalid parameter")
)

// Error wraps an underlying error with the operation that produced it.
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("prism.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches op to err. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Errorf creates a new Error. Use %w in format to keep a sentinel reachable
// through errors.Is.
func Errorf(op string, format string, args ...any) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf(format, args...),
	}
}
