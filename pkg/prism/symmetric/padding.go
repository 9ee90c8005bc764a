package symmetric

import (
	"crypto/aes"
	"crypto/subtle"

	"github.com/prismdata/prism-go/pkg/prism"
)

func pkcs7Padding(src []byte) []byte {
	padding := aes.BlockSize - len(src)%aes.BlockSize
	out := make([]byte, len(src), len(src)+padding)
	copy(out, src)
	for i := 0; i < padding; i++ {
		out = append(out, byte(padding))
	}
	return out
}

func pkcs7UnPadding(src []byte) ([]byte, error) {
	length := len(src)
	if length == 0 || length%aes.BlockSize != 0 {
		return nil, prism.Errorf("pkcs7UnPadding", "%w: length %d is not a block multiple", prism.ErrPadding, length)
	}
	unpadding := int(src[length-1])
	if unpadding == 0 || unpadding > aes.BlockSize {
		return nil, prism.Errorf("pkcs7UnPadding", "%w: bad padding length", prism.ErrPadding)
	}
	good := 1
	for _, b := range src[length-unpadding:] {
		good &= subtle.ConstantTimeByteEq(b, byte(unpadding))
	}
	if good != 1 {
		return nil, prism.Errorf("pkcs7UnPadding", "%w: inconsistent padding bytes", prism.ErrPadding)
	}
	return src[:length-unpadding], nil
}
