// Package logger builds the slog loggers used across qrmail.
//
// Logs always go to standard error. Standard output carries only the result
// document, so a consumer parsing it is never fed a log line.
//
// # Basic Usage
//
//	log := logger.New(logger.Config{Level: slog.LevelInfo, Format: "json"},
//		logger.BatchIDExtractor(),
//		logger.RequestIDExtractor(),
//	)
//
//	ctx := logger.WithBatchID(ctx, uuid.NewString())
//	log.InfoContext(ctx, "batch started", slog.Int("total", 3))
//	// {"level":"INFO","msg":"batch started","total":3,"batch_id":"6f1c..."}
//
// Config carries env tags (LOG_LEVEL, LOG_FORMAT) for caarlos0/env.
//
// # Context Extractors
//
// A ContextExtractor pulls one attribute out of the context on every log call.
// LogHandlerDecorator wraps any slog.Handler with a list of them:
//
//	h := logger.NewLogHandlerDecorator(slog.NewTextHandler(os.Stderr, nil), logger.BatchIDExtractor())
//
// # Sentry Integration
//
//	log := logger.NewWithSentry(cfg, logger.SentryConfig{
//		DSN:         os.Getenv("SENTRY_DSN"),
//		Environment: "production",
//		MinLevel:    slog.LevelWarn,
//	}, logger.BatchIDExtractor())
//	defer logger.Flush(2 * time.Second)
//
// Errors become Sentry issues, warnings are kept as Sentry logs. With an empty DSN,
// or when Sentry fails to initialize, only standard error is used.
//
// NewNope returns a logger that discards everything; packages use it when no logger
// is configured.
package logger
