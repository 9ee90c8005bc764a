package curve

import (
	"crypto/sha512"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// HashToScalar maps a domain tag and a list of byte strings to a scalar in
// [1, n-1]. Each part is length-prefixed so that distinct part lists never
// collide, and the 512-bit digest keeps the reduction bias negligible.
func HashToScalar(domain string, parts ...[]byte) *Scalar {
	h := sha512.New()
	writePart(h, []byte(domain))
	for _, p := range parts {
		writePart(h, p)
	}
	digest := h.Sum(nil)

	nMinusOne := new(big.Int).Sub(btcec.S256().Params().N, big.NewInt(1))
	x := new(big.Int).SetBytes(digest)
	x.Mod(x, nMinusOne)
	x.Add(x, big.NewInt(1))
	return ScalarFromBigInt(x)
}

func writePart(w io.Writer, p []byte) {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(p)))
	_, _ = w.Write(l[:])
	_, _ = w.Write(p)
}
