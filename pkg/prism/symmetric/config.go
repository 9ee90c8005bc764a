package symmetric

import (
	"strings"

	"github.com/prismdata/prism-go/pkg/prism"
)

// Mode selects the block cipher mode used for new ciphertexts.
type Mode byte

const (
	// ModeGCM is AES-256-GCM with a random 96-bit nonce per message.
	ModeGCM Mode = iota + 1
	// ModeCBC is AES-256-CBC with a random IV per message, authenticated
	// with HMAC-SHA256 over the header, IV and ciphertext.
	ModeCBC
)

func (m Mode) String() string {
	switch m {
	case ModeGCM:
		return "gcm"
	case ModeCBC:
		return "cbc"
	default:
		return "unknown"
	}
}

// ParseMode parses "gcm" or "cbc", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gcm", "aes-gcm":
		return ModeGCM, nil
	case "cbc", "aes-cbc":
		return ModeCBC, nil
	default:
		return 0, prism.Errorf("symmetric.ParseMode", "%w: unknown mode %q", prism.ErrInvalidParameter, s)
	}
}

// Padding selects the plaintext padding scheme.
type Padding byte

const (
	// PaddingNone is required by stream-like modes (GCM).
	PaddingNone Padding = iota
	// PaddingPKCS7 is required by CBC.
	PaddingPKCS7
)

func (p Padding) String() string {
	switch p {
	case PaddingNone:
		return "none"
	case PaddingPKCS7:
		return "pkcs7"
	default:
		return "unknown"
	}
}

// ParsePadding parses "none" or "pkcs7", case-insensitively.
func ParsePadding(s string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PaddingNone, nil
	case "pkcs7":
		return PaddingPKCS7, nil
	default:
		return 0, prism.Errorf("symmetric.ParsePadding", "%w: unknown padding %q", prism.ErrInvalidParameter, s)
	}
}

// Config expresses how new payloads are encrypted. IVs and nonces are
// always drawn fresh per message and travel with the ciphertext; they are
// deliberately not configurable.
type Config struct {
	Mode    Mode
	Padding Padding
}

// DefaultConfig returns AES-256-GCM.
func DefaultConfig() Config {
	return Config{Mode: ModeGCM, Padding: PaddingNone}
}

// Validate rejects unknown modes and mode/padding combinations that do not
// make sense.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeGCM:
		if c.Padding != PaddingNone {
			return prism.Errorf("symmetric.Config", "%w: gcm does not take padding %s", prism.ErrInvalidParameter, c.Padding)
		}
	case ModeCBC:
		if c.Padding != PaddingPKCS7 {
			return prism.Errorf("symmetric.Config", "%w: cbc requires pkcs7 padding", prism.ErrInvalidParameter)
		}
	default:
		return prism.Errorf("symmetric.Config", "%w: unknown mode %d", prism.ErrInvalidParameter, c.Mode)
	}
	return nil
}
