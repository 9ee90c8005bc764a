package service

import (
	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/pre"
)

// PayloadVersion is the current EncryptedPayload encoding version.
const PayloadVersion byte = 0x01

// EncryptedPayload is the sellable artifact: a capsule and the ciphertext
// sealed under the key it encapsulates. The capsule is replaced at each sale;
// the cipher bytes never change.
type EncryptedPayload struct {
	Capsule *pre.Capsule
	Cipher  []byte
}

// Bytes encodes the payload as version || capsule || cipher.
func (p *EncryptedPayload) Bytes() []byte {
	out := make([]byte, 0, 1+pre.CapsuleSize+len(p.Cipher))
	out = append(out, PayloadVersion)
	out = append(out, p.Capsule.Bytes()...)
	return append(out, p.Cipher...)
}

// PayloadFromBytes decodes an EncryptedPayload.
func PayloadFromBytes(b []byte) (*EncryptedPayload, error) {
	const op = "service.PayloadFromBytes"
	if len(b) < 1+pre.CapsuleSize {
		return nil, prism.Errorf(op, "%w: payload too short", prism.ErrDeserialization)
	}
	if b[0] != PayloadVersion {
		return nil, prism.Errorf(op, "%w: unknown payload version %d", prism.ErrDeserialization, b[0])
	}
	capsule, err := pre.CapsuleFromBytes(b[1 : 1+pre.CapsuleSize])
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	cipher := make([]byte, len(b)-1-pre.CapsuleSize)
	copy(cipher, b[1+pre.CapsuleSize:])
	return &EncryptedPayload{Capsule: capsule, Cipher: cipher}, nil
}
