package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/prismdata/prism-go/pkg/prism/service"
	"github.com/prismdata/prism-go/pkg/prism/symmetric"
	"github.com/prismdata/prism-go/pkg/prism/watermark"
)

const envPrefix = "PRISM"

// Configuration keys. Nested keys map to PRISM_SECTION_NAME variables.
const (
	keyConfig       = "config"
	keyLogLevel     = "log.level"
	keyLogFormat    = "log.format"
	keyStorePath    = "store.path"
	keyCipherMode   = "cipher.mode"
	keyCipherPad    = "cipher.padding"
	keyWMGamma      = "watermark.gamma"
	keyWMBits       = "watermark.l"
	keyWMThreshold  = "watermark.threshold"
	keyWMSelection  = "watermark.selection"
	keyParallelism  = "service.parallelism"
	defaultStoreDir = "prism.db"
)

// appConfig is everything the CLI reads from file, environment and flags.
type appConfig struct {
	LogLevel  slog.Level
	LogFormat string
	StorePath string
	Service   service.Config
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := service.DefaultConfig()
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyStorePath, defaultStoreDir)
	v.SetDefault(keyCipherMode, defaults.Cipher.Mode.String())
	v.SetDefault(keyWMGamma, defaults.Watermark.Gamma)
	v.SetDefault(keyWMBits, defaults.Watermark.L)
	v.SetDefault(keyWMThreshold, defaults.Watermark.Threshold)
	v.SetDefault(keyWMSelection, defaults.Watermark.Selection.String())
	v.SetDefault(keyParallelism, 0)
	return v
}

// loadConfig reads the optional config file named by the config key and
// resolves every setting.
func loadConfig(v *viper.Viper) (*appConfig, error) {
	if path := v.GetString(keyConfig); path != "" {
		abs, err := SecurePath(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(abs)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &appConfig{
		LogFormat: strings.ToLower(v.GetString(keyLogFormat)),
		StorePath: v.GetString(keyStorePath),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		return nil, fmt.Errorf("%s: %w", keyLogLevel, err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("%s: unknown format %q", keyLogFormat, cfg.LogFormat)
	}

	mode, err := symmetric.ParseMode(v.GetString(keyCipherMode))
	if err != nil {
		return nil, err
	}
	padding, err := symmetric.ParsePadding(v.GetString(keyCipherPad))
	if err != nil {
		return nil, err
	}
	// cbc without an explicit padding means pkcs7.
	if mode == symmetric.ModeCBC && v.GetString(keyCipherPad) == "" {
		padding = symmetric.PaddingPKCS7
	}
	selection, err := watermark.ParseSelection(v.GetString(keyWMSelection))
	if err != nil {
		return nil, err
	}

	cfg.Service = service.Config{
		Cipher: symmetric.Config{Mode: mode, Padding: padding},
		Watermark: watermark.Params{
			Gamma:     v.GetFloat64(keyWMGamma),
			L:         v.GetInt(keyWMBits),
			Threshold: v.GetFloat64(keyWMThreshold),
			Selection: selection,
		},
		Parallelism: v.GetInt(keyParallelism),
	}
	if err := cfg.Service.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SecurePath validates that a file path doesn't escape the working directory.
// This prevents path traversal when reading or writing user-specified files.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}

func readFile(path string) ([]byte, error) {
	abs, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	data, err := os.ReadFile(abs) // #nosec G304 -- abs validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	abs, err := SecurePath(path)
	if err != nil {
		return fmt.Errorf("secure path: %w", err)
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func readHexFile(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
