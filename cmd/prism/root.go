package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prismdata/prism-go/internal/store"
	"github.com/prismdata/prism-go/pkg/prism/logging"
	"github.com/prismdata/prism-go/pkg/prism/service"
)

// app carries the resolved configuration shared by all subcommands.
type app struct {
	v      *viper.Viper
	cfg    *appConfig
	logger logging.Logger
	svc    *service.Service
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:           "prism",
		Short:         "Encrypted dataset access control and ownership watermarks",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("store", "", "dataset store directory")
	flags.String("cipher", "", "payload cipher: gcm or cbc")
	for key, name := range map[string]string{
		keyConfig:     "config",
		keyLogLevel:   "log-level",
		keyLogFormat:  "log-format",
		keyStorePath:  "store",
		keyCipherMode: "cipher",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		a.keygenCmd(),
		a.deriveCmd(),
		a.encryptCmd(),
		a.authorizeCmd(),
		a.retrieveCmd(),
		a.auditCmd(),
		a.watermarkCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(stderr, opts)
	}
	a.cfg = cfg
	a.logger = logging.New(slog.New(handler))
	cfg.Service.Logger = a.logger

	svc, err := service.New(cfg.Service)
	if err != nil {
		return err
	}
	a.svc = svc
	return nil
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	path, err := SecurePath(a.cfg.StorePath)
	if err != nil {
		return fmt.Errorf("store path: %w", err)
	}
	s, err := store.Open(path, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.logger.Warn(ctx, "close store", "error", cerr)
		}
	}()
	return fn(s)
}
