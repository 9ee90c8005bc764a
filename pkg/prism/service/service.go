package service

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
	"github.com/prismdata/prism-go/pkg/prism/logging"
	"github.com/prismdata/prism-go/pkg/prism/pre"
	"github.com/prismdata/prism-go/pkg/prism/symmetric"
	"github.com/prismdata/prism-go/pkg/prism/watermark"
)

// Service is safe for concurrent use.
type Service struct {
	cipher      *symmetric.Cipher
	marker      *watermark.Marker
	logger      logging.Logger
	parallelism int
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cipher, err := symmetric.New(cfg.Cipher)
	if err != nil {
		return nil, prism.Wrap("service.New", err)
	}
	marker, err := watermark.New(cfg.Watermark)
	if err != nil {
		return nil, prism.Wrap("service.New", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &Service{
		cipher:      cipher,
		marker:      marker,
		logger:      logger.With("component", "service"),
		parallelism: parallelism,
	}, nil
}

// EncryptForOwner encapsulates a fresh key to the owner and seals plaintext
// under it.
func (s *Service) EncryptForOwner(ctx context.Context, owner *curve.Point, plaintext []byte) (*EncryptedPayload, error) {
	const op = "service.EncryptForOwner"
	if owner == nil {
		return nil, prism.Errorf(op, "%w: owner public key is required", prism.ErrInvalidParameter)
	}
	capsule, key, err := pre.Encapsulate(owner)
	if err != nil {
		s.logger.Warn(ctx, "encapsulation failed", "error", err)
		return nil, prism.Wrap(op, err)
	}
	defer prism.ZeroizeBytes(key)

	cipher, err := s.cipher.Encrypt(key, plaintext)
	if err != nil {
		s.logger.Warn(ctx, "encryption failed", "error", err)
		return nil, prism.Wrap(op, err)
	}
	s.logger.Info(ctx, "payload encrypted",
		logging.Fingerprint("owner", keys.Fingerprint(owner)),
		"mode", s.cipher.Config().Mode.String(),
		"plaintext_bytes", len(plaintext),
		"cipher_bytes", len(cipher),
	)
	return &EncryptedPayload{Capsule: capsule, Cipher: cipher}, nil
}

// AuthorizeBuyer issues a re-encryption key bound to buyer and the stored
// capsule transformed with it. The returned capsule replaces the stored one;
// the key goes only to the proxy serving that buyer. stored must be the
// dataset's untransformed capsule.
func (s *Service) AuthorizeBuyer(ctx context.Context, owner *curve.Scalar, buyer *curve.Point, stored *pre.Capsule) (*pre.ReEncryptionKey, *pre.Capsule, error) {
	const op = "service.AuthorizeBuyer"
	if err := ctx.Err(); err != nil {
		return nil, nil, prism.Wrap(op, err)
	}
	if owner == nil || buyer == nil || stored == nil {
		return nil, nil, prism.Errorf(op, "%w: owner key, buyer key and capsule are required", prism.ErrInvalidParameter)
	}
	rk, err := pre.GenerateReEncryptionKey(owner, buyer)
	if err != nil {
		s.logger.Warn(ctx, "re-encryption key generation failed", "error", err)
		return nil, nil, prism.Wrap(op, err)
	}
	transformed, err := pre.ReEncryptCapsule(stored, rk)
	if err != nil {
		rk.Zeroize()
		s.logger.Warn(ctx, "capsule transformation failed", "error", err)
		return nil, nil, prism.Wrap(op, err)
	}
	s.logger.Info(ctx, "buyer authorized",
		logging.Fingerprint("buyer", keys.Fingerprint(buyer)),
		logging.Redacted("rekey"),
	)
	return rk, transformed, nil
}

// Authorization is one buyer's result from AuthorizeBuyers.
type Authorization struct {
	Buyer   *curve.Point
	Key     *pre.ReEncryptionKey
	Capsule *pre.Capsule
}

// AuthorizeBuyers authorizes every buyer against the same stored capsule in
// parallel. Results follow the order of buyers. The first failure cancels
// the remaining work and is returned.
func (s *Service) AuthorizeBuyers(ctx context.Context, owner *curve.Scalar, buyers []*curve.Point, stored *pre.Capsule) ([]Authorization, error) {
	out := make([]Authorization, len(buyers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, buyer := range buyers {
		g.Go(func() error {
			rk, capsule, err := s.AuthorizeBuyer(gctx, owner, buyer, stored)
			if err != nil {
				return err
			}
			out[i] = Authorization{Buyer: buyer, Key: rk, Capsule: capsule}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, a := range out {
			if a.Key != nil {
				a.Key.Zeroize()
			}
		}
		return nil, err
	}
	return out, nil
}

// RetrieveForBuyer opens a payload whose capsule was transformed for the
// buyer. Any other key fails with prism.ErrDecapsulation.
func (s *Service) RetrieveForBuyer(ctx context.Context, buyer *curve.Scalar, payload *EncryptedPayload) ([]byte, error) {
	const op = "service.RetrieveForBuyer"
	if buyer == nil || payload == nil || payload.Capsule == nil {
		return nil, prism.Errorf(op, "%w: buyer key and payload are required", prism.ErrInvalidParameter)
	}
	key, err := pre.Decapsulate(payload.Capsule, buyer)
	if err != nil {
		s.logger.Warn(ctx, "decapsulation failed", "reencrypted", payload.Capsule.IsReEncrypted(), "error", err)
		return nil, prism.Wrap(op, err)
	}
	defer prism.ZeroizeBytes(key)

	plaintext, err := s.cipher.Decrypt(key, payload.Cipher)
	if err != nil {
		s.logger.Warn(ctx, "decryption failed", "error", err)
		return nil, prism.Wrap(op, err)
	}
	s.logger.Debug(ctx, "payload retrieved", "bytes", len(plaintext))
	return plaintext, nil
}

// WatermarkInsert returns a marked copy of records.
func (s *Service) WatermarkInsert(ctx context.Context, secret watermark.Secret, records []watermark.Record) ([]watermark.Record, watermark.InsertReport, error) {
	marked, report, err := s.marker.Insert(secret, records)
	if err != nil {
		return nil, watermark.InsertReport{}, prism.Wrap("service.WatermarkInsert", err)
	}
	s.logger.Info(ctx, "watermark inserted",
		logging.Redacted("secret"),
		"marked", report.Marked,
		"total", report.Total,
	)
	return marked, report, nil
}

// WatermarkDetect measures how well records agree with the mark expected
// under secret. On prism.ErrInsufficientData the zero-count Result is
// returned alongside the error.
func (s *Service) WatermarkDetect(ctx context.Context, secret watermark.Secret, records []watermark.Record, threshold float64) (watermark.Result, error) {
	res, err := s.marker.DetectWithThreshold(secret, records, threshold)
	if err != nil {
		s.logger.Warn(ctx, "watermark detection inconclusive", "records", len(records), "error", err)
		return res, prism.Wrap("service.WatermarkDetect", err)
	}
	s.logger.Info(ctx, "watermark detection",
		"detected", res.Detected,
		"match_ratio", res.MatchRatio,
		"total_marked", res.TotalMarked,
		"matching_bits", res.MatchingBits,
		"p_value", res.PValue,
	)
	return res, nil
}

// Params returns the watermark parameters in effect.
func (s *Service) Params() watermark.Params {
	return s.marker.Params()
}
