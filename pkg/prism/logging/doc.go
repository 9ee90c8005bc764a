// Package logging is the small logging facade the prism packages log
// through.
//
// Logger wraps the context-aware subset of log/slog:
//
//	logger := logging.New(nil) // slog.Default()
//	logger.Info(ctx, "dataset encrypted", "dataset", id, "bytes", n)
//
// Pass logging.Discard() where output is unwanted, such as in tests.
//
// # Redaction
//
// Private keys, symmetric keys, re-encryption keys and watermark secrets are
// never logged. Use Redacted to record that a value was deliberately left
// out, and Fingerprint to identify a public key without printing it whole:
//
//	logger.Debug(ctx, "grant issued",
//	    logging.Fingerprint("buyer", buyerFP),
//	    logging.Redacted("rekey"),
//	)
package logging
