package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/watermark"
)

type tableFlags struct {
	in        string
	keyColumn int
	header    bool
	comma     string
	secret    string
}

func (f *tableFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.in, "in", "", "input CSV file")
	fs.IntVar(&f.keyColumn, "key-column", 0, "zero-based primary key column")
	fs.BoolVar(&f.header, "header", false, "the first row is a header")
	fs.StringVar(&f.comma, "delimiter", ",", "field delimiter")
	fs.StringVar(&f.secret, "secret", "", "watermark secret file (hex)")
}

func (f *tableFlags) options() (watermark.CSVOptions, error) {
	runes := []rune(f.comma)
	if len(runes) != 1 {
		return watermark.CSVOptions{}, fmt.Errorf("delimiter must be one character, got %q", f.comma)
	}
	return watermark.CSVOptions{KeyColumn: f.keyColumn, Header: f.header, Comma: runes[0]}, nil
}

func (f *tableFlags) load() (*watermark.Table, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	data, err := readFile(f.in)
	if err != nil {
		return nil, err
	}
	return watermark.ReadCSV(bytes.NewReader(data), opts)
}

func loadSecret(path string) (watermark.Secret, error) {
	s, err := readHexFile(path)
	if err != nil {
		return nil, err
	}
	return watermark.ParseSecretHex(s)
}

func (a *app) watermarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Insert or detect ownership watermarks in CSV datasets",
	}
	cmd.AddCommand(a.watermarkInsertCmd(), a.watermarkDetectCmd())
	return cmd
}

func (a *app) watermarkInsertCmd() *cobra.Command {
	var (
		tf        tableFlags
		out       string
		newSecret string
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Write a watermarked copy of a CSV dataset",
		Long: "Write a watermarked copy of a CSV dataset. Every column except the key must hold integers.\n" +
			"Use --secret for an existing secret, or --new-secret to generate one and save it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := a.insertSecret(tf.secret, newSecret)
			if err != nil {
				return err
			}
			defer secret.Zeroize()
			table, err := tf.load()
			if err != nil {
				return err
			}

			marked, report, err := a.svc.WatermarkInsert(cmd.Context(), secret, table.Records)
			if err != nil {
				return err
			}
			table.Records = marked
			var buf bytes.Buffer
			if err := table.WriteCSV(&buf); err != nil {
				return err
			}
			if err := writeFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked: %d\ntotal: %d\nfingerprint: %s\n",
				report.Marked, report.Total, hex.EncodeToString(report.Fingerprint))
			return nil
		},
	}
	tf.register(cmd.Flags())
	cmd.Flags().StringVar(&out, "out", "", "output CSV file")
	cmd.Flags().StringVar(&newSecret, "new-secret", "", "generate a secret and write it to this file")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) insertSecret(existing, fresh string) (watermark.Secret, error) {
	switch {
	case existing != "" && fresh != "":
		return nil, errors.New("use either --secret or --new-secret")
	case existing != "":
		return loadSecret(existing)
	case fresh != "":
		s, err := watermark.NewSecret()
		if err != nil {
			return nil, err
		}
		if err := writeFile(fresh, []byte(s.Hex()+"\n"), 0o600); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.New("one of --secret or --new-secret is required")
	}
}

func (a *app) watermarkDetectCmd() *cobra.Command {
	var (
		tf        tableFlags
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Measure how well a suspect CSV dataset matches a watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := loadSecret(tf.secret)
			if err != nil {
				return err
			}
			defer secret.Zeroize()
			table, err := tf.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = a.svc.Params().Threshold
			}

			res, err := a.svc.WatermarkDetect(cmd.Context(), secret, table.Records, threshold)
			if errors.Is(err, prism.ErrInsufficientData) {
				return fmt.Errorf("no record is selected under this secret: the dataset is too small or the secret or parameters differ: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "detected: %t\nmatch ratio: %.4f\nmatching bits: %d\ntotal marked: %d\np-value: %.3g\n",
				res.Detected, res.MatchRatio, res.MatchingBits, res.TotalMarked, res.PValue)
			return nil
		},
	}
	tf.register(cmd.Flags())
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum match ratio (default from config)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}
