package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
	"github.com/prismdata/prism-go/pkg/prism/watermark"
)

const (
	privateKeyExt = ".key"
	publicKeyExt  = ".pub"
	secretExt     = ".wmk"
	masterExt     = ".msk"
)

func (a *app) keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair",
		Long:  "Generate a random key pair and write NAME.key (private, mode 0600) and NAME.pub.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := keys.Generate()
			if err != nil {
				return err
			}
			defer kp.Zeroize()
			return writeKeyPair(cmd, out, kp)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file name without extension")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) deriveCmd() *cobra.Command {
	var (
		out       string
		signature string
		secret    bool
		master    bool
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a key pair from a wallet signature",
		Long: "Derive a deterministic key pair from a hex wallet signature and write NAME.key and NAME.pub.\n" +
			"With --watermark-secret, also write the derived watermark secret to NAME.wmk.\n" +
			"With --master-secret, also write the legacy point-from-x master secret to NAME.msk; this fails\n" +
			"when the leading 32 signature bytes are not a curve x coordinate, and a new signature is needed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sig, err := hex.DecodeString(trimHexPrefix(signature))
			if err != nil {
				return fmt.Errorf("signature: %w", err)
			}
			kp, err := keys.DeriveKeyPair(sig)
			if err != nil {
				return err
			}
			defer kp.Zeroize()
			if master {
				ms, err := keys.DeriveMasterSecret(sig)
				if err != nil {
					return err
				}
				defer prism.ZeroizeBytes(ms)
				if err := writeFile(out+masterExt, []byte(hex.EncodeToString(ms)+"\n"), 0o600); err != nil {
					return err
				}
			}
			if err := writeKeyPair(cmd, out, kp); err != nil {
				return err
			}
			if master {
				fmt.Fprintf(cmd.OutOrStdout(), "master secret: %s\n", out+masterExt)
			}
			if !secret {
				return nil
			}
			s, err := watermark.SecretFromSignature(sig)
			if err != nil {
				return err
			}
			defer s.Zeroize()
			if err := writeFile(out+secretExt, []byte(s.Hex()+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watermark secret: %s\n", out+secretExt)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file name without extension")
	cmd.Flags().StringVar(&signature, "signature", "", "hex-encoded wallet signature")
	cmd.Flags().BoolVar(&secret, "watermark-secret", false, "also derive a watermark secret")
	cmd.Flags().BoolVar(&master, "master-secret", false, "also derive the point-from-x master secret")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}

func writeKeyPair(cmd *cobra.Command, name string, kp *keys.KeyPair) error {
	priv := hex.EncodeToString(keys.EncodePrivateKey(kp.Private))
	if err := writeFile(name+privateKeyExt, []byte(priv+"\n"), 0o600); err != nil {
		return err
	}
	pub := hex.EncodeToString(keys.EncodePublicKey(kp.Public))
	if err := writeFile(name+publicKeyExt, []byte(pub+"\n"), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nfingerprint: %s\n", pub, keys.ShortFingerprint(kp.Public))
	return nil
}

func loadPrivateKey(path string) (*keys.KeyPair, error) {
	s, err := readHexFile(path)
	if err != nil {
		return nil, err
	}
	sk, err := keys.ParsePrivateKeyHex(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return keys.FromPrivate(sk)
}

func loadPublicKey(path string) (*curve.Point, error) {
	s, err := readHexFile(path)
	if err != nil {
		return nil, err
	}
	pk, err := keys.ParsePublicKeyHex(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pk, nil
}
