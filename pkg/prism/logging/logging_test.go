package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := New(base).With("component", "test")
	ctx := context.Background()

	logger.Debug(ctx, "debug line", "n", 1)
	logger.Info(ctx, "info line", Redacted("secret"))
	logger.Warn(ctx, "warn line")
	logger.Error(ctx, "error line", Fingerprint("buyer", bytes.Repeat([]byte{0xab}, 32)))

	out := buf.String()
	for _, want := range []string{
		"debug line", "info line", "warn line", "error line",
		"component=test",
		"secret=" + Placeholder(),
		"buyer=abababababababab\n",
	} {
		assert.Contains(t, out, want)
	}
}

func TestLoggerRespectsHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	logger.Info(context.Background(), "quiet")
	logger.Warn(context.Background(), "loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestFingerprintShortInput(t *testing.T) {
	attr := Fingerprint("k", []byte{0x01, 0x02})
	assert.Equal(t, "0102", attr.Value.String())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.With("a", 1).Info(context.Background(), "dropped")
	})
}

func TestNewNilUsesDefault(t *testing.T) {
	assert.NotNil(t, New(nil))
}
