// Package middlewares provides the HTTP middlewares of the qrmail server.
//
// # Request ID
//
// RequestID keeps an upstream X-Request-ID (or X-Correlation-ID) or generates a UUID,
// echoes it in the response and stores it in the request context. Pair it with
// logger.RequestIDExtractor so every log line of the request carries request_id.
//
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// # Recover
//
// Recover catches panics, logs them with a stack trace and answers 500.
// WithRecoverResponder replaces the response body, for example with a JSON document:
//
//	r.Use(middlewares.Recover(
//		middlewares.WithRecoverLogger(log),
//		middlewares.WithRecoverResponder(writeFailure),
//	))
package middlewares
