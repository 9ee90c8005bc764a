// Package symmetric encrypts payloads under the 32-byte key a PRE capsule
// encodes. Every ciphertext is authenticated: decrypting with any other key
// fails with prism.ErrAuthentication instead of returning garbage.
//
// Ciphertext layout:
//
//	version(1) || mode(1) || nonce or IV || body [|| HMAC-SHA256 for CBC]
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/prismdata/prism-go/pkg/prism"
)

const (
	// KeySize is the required key length (AES-256).
	KeySize = 32

	// FormatVersion is the current ciphertext format version.
	FormatVersion byte = 0x01

	headerSize = 2
	gcmNonce   = 12
	macSize    = sha256.Size
	cbcSalt    = "prism/symmetric/v1/cbc"
	cbcInfo    = "enc||mac"
)

// Cipher encrypts with one validated Config. It holds no key material and
// is safe for concurrent use.
type Cipher struct {
	cfg  Config
	rand io.Reader
}

// New validates cfg and returns a Cipher.
func New(cfg Config) (*Cipher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cipher{cfg: cfg, rand: rand.Reader}, nil
}

// Config returns the configuration new ciphertexts are produced with.
func (c *Cipher) Config() Config {
	return c.cfg
}

// Encrypt seals plaintext under key.
func (c *Cipher) Encrypt(key, plaintext []byte) ([]byte, error) {
	const op = "symmetric.Encrypt"
	if len(key) != KeySize {
		return nil, prism.Errorf(op, "%w: key must be %d bytes", prism.ErrInvalidParameter, KeySize)
	}
	header := []byte{FormatVersion, byte(c.cfg.Mode)}
	switch c.cfg.Mode {
	case ModeGCM:
		return c.sealGCM(header, key, plaintext)
	case ModeCBC:
		return c.sealCBC(header, key, plaintext)
	default:
		return nil, prism.Errorf(op, "%w: unknown mode %d", prism.ErrInvalidParameter, c.cfg.Mode)
	}
}

// Decrypt opens a ciphertext produced by any Cipher: the mode is taken from
// the ciphertext header, not from this Cipher's Config.
func (c *Cipher) Decrypt(key, ciphertext []byte) ([]byte, error) {
	return Decrypt(key, ciphertext)
}

// Decrypt opens ciphertext under key.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	const op = "symmetric.Decrypt"
	if len(key) != KeySize {
		return nil, prism.Errorf(op, "%w: key must be %d bytes", prism.ErrInvalidParameter, KeySize)
	}
	if len(ciphertext) < headerSize {
		return nil, prism.Errorf(op, "%w: ciphertext too short", prism.ErrDeserialization)
	}
	if ciphertext[0] != FormatVersion {
		return nil, prism.Errorf(op, "%w: unknown format version %d", prism.ErrDeserialization, ciphertext[0])
	}
	header, body := ciphertext[:headerSize], ciphertext[headerSize:]
	switch Mode(header[1]) {
	case ModeGCM:
		return openGCM(header, key, body)
	case ModeCBC:
		return openCBC(header, key, body)
	default:
		return nil, prism.Errorf(op, "%w: unknown mode %d", prism.ErrDeserialization, header[1])
	}
}

func (c *Cipher) sealGCM(header, key, plaintext []byte) ([]byte, error) {
	const op = "symmetric.Encrypt"
	aead, err := newGCM(key)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	out := make([]byte, headerSize+gcmNonce, headerSize+gcmNonce+len(plaintext)+aead.Overhead())
	copy(out, header)
	nonce := out[headerSize:]
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, prism.Errorf(op, "read nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, header), nil
}

func openGCM(header, key, body []byte) ([]byte, error) {
	const op = "symmetric.Decrypt"
	aead, err := newGCM(key)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	if len(body) < gcmNonce+aead.Overhead() {
		return nil, prism.Errorf(op, "%w: gcm ciphertext too short", prism.ErrDeserialization)
	}
	nonce, sealed := body[:gcmNonce], body[gcmNonce:]
	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, prism.Errorf(op, "%w", prism.ErrAuthentication)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *Cipher) sealCBC(header, key, plaintext []byte) ([]byte, error) {
	const op = "symmetric.Encrypt"
	encKey, macKey, err := splitCBCKey(key)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	defer prism.ZeroizeBytes(encKey)
	defer prism.ZeroizeBytes(macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	padded := pkcs7Padding(plaintext)
	out := make([]byte, headerSize+aes.BlockSize+len(padded), headerSize+aes.BlockSize+len(padded)+macSize)
	copy(out, header)
	iv := out[headerSize : headerSize+aes.BlockSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, prism.Errorf(op, "read iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[headerSize+aes.BlockSize:], padded)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	return mac.Sum(out), nil
}

func openCBC(header, key, body []byte) ([]byte, error) {
	const op = "symmetric.Decrypt"
	if len(body) < aes.BlockSize*2+macSize || (len(body)-macSize)%aes.BlockSize != 0 {
		return nil, prism.Errorf(op, "%w: cbc ciphertext has invalid length", prism.ErrDeserialization)
	}
	encKey, macKey, err := splitCBCKey(key)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	defer prism.ZeroizeBytes(encKey)
	defer prism.ZeroizeBytes(macKey)

	signed, tag := body[:len(body)-macSize], body[len(body)-macSize:]
	mac := hmac.New(sha256.New, macKey)
	mac.Write(header)
	mac.Write(signed)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, prism.Errorf(op, "%w", prism.ErrAuthentication)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	iv, ct := signed[:aes.BlockSize], signed[aes.BlockSize:]
	plaintext := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ct)
	unpadded, err := pkcs7UnPadding(plaintext)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	return unpadded, nil
}

func splitCBCKey(key []byte) (encKey, macKey []byte, err error) {
	okm := make([]byte, 2*KeySize)
	r := hkdf.New(sha256.New, key, []byte(cbcSalt), []byte(cbcInfo))
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, nil, err
	}
	return okm[:KeySize], okm[KeySize:], nil
}
