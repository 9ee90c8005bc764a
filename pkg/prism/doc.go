// Package prism holds the pieces shared by the prism access-control and
// ownership-proof packages: the error taxonomy, build metadata and memory
// hygiene helpers.
//
// # Packages
//
//   - curve: secp256k1 scalars and points
//   - keys: key pairs, encodings and signature-derived keys
//   - pre: proxy re-encryption capsules and delegation keys
//   - symmetric: authenticated payload encryption under a capsule's key
//   - watermark: keyed statistical watermarks over numeric records
//   - service: the entry points a marketplace host calls
//
// # Errors
//
// Every failure is returned as *Error wrapping one of the sentinel errors
// declared here, so callers can branch with errors.Is:
//
//	key, err := pre.Decapsulate(capsule, buyerKey)
//	if errors.Is(err, prism.ErrDecapsulation) {
//	    // not this buyer's capsule: no access
//	}
//
// None of the errors are transient. Corrupted input, a wrong key and wrong
// parameters each map to a distinct sentinel and must be surfaced as-is.
package prism
