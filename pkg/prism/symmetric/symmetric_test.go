package symmetric

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismdata/prism-go/pkg/prism"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func allConfigs() map[string]Config {
	return map[string]Config{
		"gcm": DefaultConfig(),
		"cbc": {Mode: ModeCBC, Padding: PaddingPKCS7},
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for name, cfg := range allConfigs() {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg)
			require.NoError(t, err)
			key := randomKey(t)

			for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 33, 1000} {
				pt := make([]byte, size)
				_, err := rand.Read(pt)
				require.NoError(t, err)

				ct, err := c.Encrypt(key, pt)
				require.NoError(t, err)
				assert.Equal(t, FormatVersion, ct[0])
				assert.Equal(t, byte(cfg.Mode), ct[1])

				got, err := c.Decrypt(key, ct)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(pt, got), "size %d", size)
			}
		})
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	for name, cfg := range allConfigs() {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg)
			require.NoError(t, err)
			key := randomKey(t)
			pt := []byte("same plaintext, different ciphertext")

			ct1, err := c.Encrypt(key, pt)
			require.NoError(t, err)
			ct2, err := c.Encrypt(key, pt)
			require.NoError(t, err)
			assert.NotEqual(t, ct1, ct2)
		})
	}
}

func TestDecryptFollowsHeaderMode(t *testing.T) {
	cbc, err := New(Config{Mode: ModeCBC, Padding: PaddingPKCS7})
	require.NoError(t, err)
	gcm, err := New(DefaultConfig())
	require.NoError(t, err)
	key := randomKey(t)

	ct, err := cbc.Encrypt(key, []byte("hello"))
	require.NoError(t, err)
	got, err := gcm.Decrypt(key, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestDecryptWrongKey(t *testing.T) {
	for name, cfg := range allConfigs() {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg)
			require.NoError(t, err)
			ct, err := c.Encrypt(randomKey(t), []byte("secret dataset"))
			require.NoError(t, err)

			_, err = c.Decrypt(randomKey(t), ct)
			assert.ErrorIs(t, err, prism.ErrAuthentication)
		})
	}
}

func TestDecryptTampered(t *testing.T) {
	for name, cfg := range allConfigs() {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg)
			require.NoError(t, err)
			key := randomKey(t)
			ct, err := c.Encrypt(key, []byte("secret dataset with some length"))
			require.NoError(t, err)

			for _, i := range []int{headerSize, headerSize + 5, len(ct) / 2, len(ct) - 1} {
				tampered := append([]byte(nil), ct...)
				tampered[i] ^= 0x01
				_, err := c.Decrypt(key, tampered)
				assert.ErrorIs(t, err, prism.ErrAuthentication, "byte %d", i)
			}
		})
	}
}

func TestDecryptMalformed(t *testing.T) {
	key := randomKey(t)
	gcm, err := New(DefaultConfig())
	require.NoError(t, err)
	ct, err := gcm.Encrypt(key, []byte("x"))
	require.NoError(t, err)

	badVersion := append([]byte(nil), ct...)
	badVersion[0] = 0x7f
	badMode := append([]byte(nil), ct...)
	badMode[1] = 0x09

	cases := map[string][]byte{
		"empty":       nil,
		"header only": {FormatVersion},
		"bad version": badVersion,
		"bad mode":    badMode,
		"short gcm":   ct[:headerSize+gcmNonce],
		"short cbc":   append([]byte{FormatVersion, byte(ModeCBC)}, make([]byte, aes.BlockSize)...),
		"ragged cbc":  append([]byte{FormatVersion, byte(ModeCBC)}, make([]byte, 2*aes.BlockSize+macSize+3)...),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decrypt(key, in)
			assert.ErrorIs(t, err, prism.ErrDeserialization)
		})
	}
}

func TestKeySizeEnforced(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = c.Encrypt(make([]byte, 16), []byte("x"))
	assert.ErrorIs(t, err, prism.ErrInvalidParameter)
	_, err = Decrypt(make([]byte, 31), []byte{FormatVersion, byte(ModeGCM)})
	assert.ErrorIs(t, err, prism.ErrInvalidParameter)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Mode: ModeCBC, Padding: PaddingPKCS7}.Validate())

	for _, cfg := range []Config{
		{},
		{Mode: ModeGCM, Padding: PaddingPKCS7},
		{Mode: ModeCBC, Padding: PaddingNone},
		{Mode: Mode(42)},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, prism.ErrInvalidParameter, "%+v", cfg)
	}
}

func TestParseModeAndPadding(t *testing.T) {
	m, err := ParseMode("GCM")
	require.NoError(t, err)
	assert.Equal(t, ModeGCM, m)
	m, err = ParseMode(" aes-cbc ")
	require.NoError(t, err)
	assert.Equal(t, ModeCBC, m)
	_, err = ParseMode("ecb")
	assert.ErrorIs(t, err, prism.ErrInvalidParameter)

	p, err := ParsePadding("")
	require.NoError(t, err)
	assert.Equal(t, PaddingNone, p)
	p, err = ParsePadding("PKCS7")
	require.NoError(t, err)
	assert.Equal(t, PaddingPKCS7, p)
	_, err = ParsePadding("zero")
	assert.ErrorIs(t, err, prism.ErrInvalidParameter)

	assert.Equal(t, "gcm", ModeGCM.String())
	assert.Equal(t, "pkcs7", PaddingPKCS7.String())
}

func TestPKCS7Padding(t *testing.T) {
	// 0 byte input
	ptext := []byte("")
	expected := bytes.Repeat([]byte{byte(aes.BlockSize)}, aes.BlockSize)
	assert.Equal(t, expected, pkcs7Padding(ptext))

	// 1 byte input
	ptext = []byte("1")
	expected = append([]byte("1"), bytes.Repeat([]byte{byte(aes.BlockSize - 1)}, aes.BlockSize-1)...)
	assert.Equal(t, expected, pkcs7Padding(ptext))

	// full block input gets a whole block of padding
	ptext = bytes.Repeat([]byte("a"), aes.BlockSize)
	padded := pkcs7Padding(ptext)
	assert.Len(t, padded, 2*aes.BlockSize)

	for i := 0; i <= 3*aes.BlockSize; i++ {
		in := bytes.Repeat([]byte{0x5a}, i)
		out, err := pkcs7UnPadding(pkcs7Padding(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestPKCS7UnPaddingRejects(t *testing.T) {
	block := func(last byte, fill byte) []byte {
		b := bytes.Repeat([]byte{fill}, aes.BlockSize)
		b[aes.BlockSize-1] = last
		return b
	}
	cases := map[string][]byte{
		"empty":        {},
		"not a block":  make([]byte, aes.BlockSize-1),
		"zero pad":     block(0, 0),
		"too long pad": block(aes.BlockSize+1, aes.BlockSize+1),
		"inconsistent": block(4, 3),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pkcs7UnPadding(in)
			assert.ErrorIs(t, err, prism.ErrPadding)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestEncryptRandomnessFailure(t *testing.T) {
	for name, cfg := range allConfigs() {
		t.Run(name, func(t *testing.T) {
			c := &Cipher{cfg: cfg, rand: failingReader{}}
			_, err := c.Encrypt(randomKey(t), []byte("x"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "entropy exhausted")
		})
	}
}
