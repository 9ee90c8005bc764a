package watermark

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/prismdata/prism-go/pkg/prism"
)

// SecretSize is the length of generated and derived secrets.
const SecretSize = 32

const secretSalt = "prism/watermark/v1/secret"

// Secret is the owner's marking key. Any non-empty byte string is accepted;
// NewSecret and SecretFromSignature both produce SecretSize bytes.
type Secret []byte

// NewSecret draws a random secret.
func NewSecret() (Secret, error) {
	s := make(Secret, SecretSize)
	if _, err := io.ReadFull(rand.Reader, s); err != nil {
		return nil, prism.Errorf("watermark.NewSecret", "read random: %w", err)
	}
	return s, nil
}

// SecretFromSignature derives a secret from an identity signature, so an
// owner can recompute it from the wallet that signed the upload.
func SecretFromSignature(signature []byte) (Secret, error) {
	const op = "watermark.SecretFromSignature"
	if len(signature) == 0 {
		return nil, prism.Errorf(op, "%w: empty signature", prism.ErrInvalidParameter)
	}
	s := make(Secret, SecretSize)
	r := hkdf.New(sha256.New, signature, []byte(secretSalt), []byte("watermark"))
	if _, err := io.ReadFull(r, s); err != nil {
		return nil, prism.Wrap(op, err)
	}
	return s, nil
}

// ParseSecretHex decodes a hex secret with an optional 0x prefix.
func ParseSecretHex(s string) (Secret, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, prism.Errorf("watermark.ParseSecretHex", "%w: %v", prism.ErrInvalidKeyEncoding, err)
	}
	if len(b) == 0 {
		return nil, prism.Errorf("watermark.ParseSecretHex", "%w: empty secret", prism.ErrInvalidKeyEncoding)
	}
	return b, nil
}

// Hex encodes the secret. Callers that log should use String instead.
func (s Secret) Hex() string {
	return hex.EncodeToString(s)
}

func (s Secret) String() string {
	return "watermark.Secret(REDACTED)"
}

// Zeroize overwrites the secret in place.
func (s Secret) Zeroize() {
	prism.ZeroizeBytes(s)
}
