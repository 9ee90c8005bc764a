// Package service composes the prism primitives into the entry points a
// marketplace host calls: encrypt a dataset for its owner, authorize buyers,
// retrieve as a buyer, and insert or detect ownership watermarks.
//
// A Service is constructed explicitly from a validated Config and holds no
// per-dataset state. Persisting capsules, and serializing the replacement of
// a dataset's current capsule, is the host's job (see internal/store).
//
//	svc, err := service.New(service.DefaultConfig())
//	payload, err := svc.EncryptForOwner(ctx, owner.Public, data)
//	rk, capsule, err := svc.AuthorizeBuyer(ctx, owner.Private, buyer.Public, payload.Capsule)
//	plain, err := svc.RetrieveForBuyer(ctx, buyer.Private, &service.EncryptedPayload{Capsule: capsule, Cipher: payload.Cipher})
package service
