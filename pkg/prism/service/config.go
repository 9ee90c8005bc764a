package service

import (
	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/logging"
	"github.com/prismdata/prism-go/pkg/prism/symmetric"
	"github.com/prismdata/prism-go/pkg/prism/watermark"
)

// Config configures a Service.
type Config struct {
	Cipher    symmetric.Config
	Watermark watermark.Params
	// Logger receives one line per entry point. Nil discards.
	Logger logging.Logger
	// Parallelism bounds AuthorizeBuyers. Zero or less means GOMAXPROCS.
	Parallelism int
}

// DefaultConfig returns AES-256-GCM and the default watermark parameters.
func DefaultConfig() Config {
	return Config{
		Cipher:    symmetric.DefaultConfig(),
		Watermark: watermark.DefaultParams(),
	}
}

// Validate checks the cipher and watermark settings.
func (c Config) Validate() error {
	if err := c.Cipher.Validate(); err != nil {
		return prism.Wrap("service.Config", err)
	}
	if err := c.Watermark.Validate(); err != nil {
		return prism.Wrap("service.Config", err)
	}
	return nil
}
