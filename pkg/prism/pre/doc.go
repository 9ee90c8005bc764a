// Package pre implements single-hop proxy re-encryption over secp256k1.
//
// An owner encapsulates a fresh symmetric key to its own public key. To grant
// a buyer access the owner derives a re-encryption key from its private key
// and the buyer's public key; an untrusted proxy applies it to the capsule.
// The transformed capsule decapsulates, under the buyer's private key only,
// to the same symmetric key. The proxy never sees a private key or the
// symmetric key.
//
// # Protocol
//
// Encapsulate(pkA):
//
//	E = r*G, V = u*G, s = u + r*H2(E, V)
//	K = KDF((r+u)*pkA)
//
// GenerateReEncryptionKey(skA, pkB):
//
//	X = x*G, d = H3(X, pkB, x*pkB), rk = skA * d^-1
//
// ReEncryptCapsule(capsule, rk):
//
//	check s*G == V + H2(E, V)*E, then E' = rk*E, V' = rk*V
//
// Decapsulate:
//
//	original:      K = KDF(skA*(E + V))
//	re-encrypted:  K = KDF(H3(X, pkB, skB*X) * (E' + V'))
//
// Each capsule carries a check tag over K, so a private key that does not
// belong to the capsule's current recipient fails with prism.ErrDecapsulation
// instead of yielding a wrong key.
//
// # Encodings
//
// Capsule and ReEncryptionKey encodings are fixed-width and start with a
// version byte; see CapsuleSize and ReEncryptionKeySize.
package pre
