package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prismdata/prism-go/internal/store"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
	"github.com/prismdata/prism-go/pkg/prism/service"
)

func (a *app) encryptCmd() *cobra.Command {
	var ownerPub, in, out string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a file for its owner and store it",
		Long: "Encrypt a file under the owner's public key, store the payload and print its dataset id.\n" +
			"With --out the encoded payload is also written to a file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner, err := loadPublicKey(ownerPub)
			if err != nil {
				return err
			}
			plaintext, err := readFile(in)
			if err != nil {
				return err
			}
			payload, err := a.svc.EncryptForOwner(ctx, owner, plaintext)
			if err != nil {
				return err
			}
			if out != "" {
				if err := writeFile(out, payload.Bytes(), 0o644); err != nil {
					return err
				}
			}
			return a.withStore(ctx, func(s *store.Store) error {
				id, err := s.Create(ctx, owner, payload.Capsule, payload.Cipher)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerPub, "owner-pub", "", "owner public key file")
	cmd.Flags().StringVar(&in, "in", "", "plaintext file")
	cmd.Flags().StringVar(&out, "out", "", "optional file for the encoded payload")
	_ = cmd.MarkFlagRequired("owner-pub")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) authorizeCmd() *cobra.Command {
	var (
		dataset   string
		ownerKey  string
		buyerPubs []string
	)
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant buyers access to a stored dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(dataset)
			if err != nil {
				return fmt.Errorf("dataset id: %w", err)
			}
			owner, err := loadPrivateKey(ownerKey)
			if err != nil {
				return err
			}
			defer owner.Zeroize()
			buyers := make([]*curve.Point, len(buyerPubs))
			for i, path := range buyerPubs {
				if buyers[i], err = loadPublicKey(path); err != nil {
					return err
				}
			}

			return a.withStore(ctx, func(s *store.Store) error {
				ds, err := s.Get(id)
				if err != nil {
					return err
				}
				if !ds.Owner.Equal(owner.Public) {
					return fmt.Errorf("dataset %s belongs to another owner", id)
				}
				auths, err := a.svc.AuthorizeBuyers(ctx, owner.Private, buyers, ds.Original)
				if err != nil {
					return err
				}
				for _, auth := range auths {
					defer auth.Key.Zeroize()
				}
				expected := ds.Current
				for _, auth := range auths {
					if err := s.RecordSale(ctx, id, expected, auth.Buyer, auth.Key, auth.Capsule); err != nil {
						return err
					}
					expected = auth.Capsule
					fmt.Fprintf(cmd.OutOrStdout(), "authorized %s\n", keys.ShortFingerprint(auth.Buyer))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset id")
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner private key file")
	cmd.Flags().StringArrayVar(&buyerPubs, "buyer-pub", nil, "buyer public key file (repeatable)")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("buyer-pub")
	return cmd
}

func (a *app) retrieveCmd() *cobra.Command {
	var dataset, key, out string
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Decrypt a stored dataset as its owner or an authorized buyer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(dataset)
			if err != nil {
				return fmt.Errorf("dataset id: %w", err)
			}
			kp, err := loadPrivateKey(key)
			if err != nil {
				return err
			}
			defer kp.Zeroize()

			var payload *service.EncryptedPayload
			err = a.withStore(ctx, func(s *store.Store) error {
				ds, err := s.Get(id)
				if err != nil {
					return err
				}
				if ds.Owner.Equal(kp.Public) {
					payload = &service.EncryptedPayload{Capsule: ds.Original, Cipher: ds.Cipher}
					return nil
				}
				grant, err := s.Grant(id, kp.Public)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no access to dataset %s for %s", id, keys.ShortFingerprint(kp.Public))
				}
				if err != nil {
					return err
				}
				payload = &service.EncryptedPayload{Capsule: grant.Capsule, Cipher: ds.Cipher}
				return nil
			})
			if err != nil {
				return err
			}

			plaintext, err := a.svc.RetrieveForBuyer(ctx, kp.Private, payload)
			if err != nil {
				return err
			}
			return writeFile(out, plaintext, 0o600)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset id")
	cmd.Flags().StringVar(&key, "key", "", "private key file")
	cmd.Flags().StringVar(&out, "out", "", "file for the decrypted data")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	var dataset string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List stored datasets, or the capsule history and grants of one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				if dataset == "" {
					ids, err := s.List()
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(w, id.String())
					}
					return nil
				}

				id, err := uuid.Parse(dataset)
				if err != nil {
					return fmt.Errorf("dataset id: %w", err)
				}
				ds, err := s.Get(id)
				if err != nil {
					return err
				}
				history, err := s.History(id)
				if err != nil {
					return err
				}
				grants, err := s.Grants(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "dataset: %s\nowner: %s\ncreated: %s\nsales: %d\ncapsules: %d\n",
					id, keys.ShortFingerprint(ds.Owner), ds.Created.Format(time.RFC3339), ds.Sales, len(history))
				for _, g := range grants {
					fmt.Fprintf(w, "grant: %s issued %s\n", keys.ShortFingerprint(g.Buyer), g.Issued.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset id; empty lists all datasets")
	return cmd
}
