package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/dmitrymomot/qrmail/pkg/logger"
)

// DefaultStackSize is the default maximum stack trace size in bytes.
const DefaultStackSize = 4096

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	Logger    *slog.Logger
	Respond   func(w http.ResponseWriter, r *http.Request, p *PanicError)
	StackSize int // Max stack trace size (default: 4096), 0 or less disables it
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverLogger sets the logger for recovered panics.
func WithRecoverLogger(l *slog.Logger) RecoverOption {
	return func(cfg *RecoverConfig) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverResponder replaces the default plain 500 response.
func WithRecoverResponder(fn func(w http.ResponseWriter, r *http.Request, p *PanicError)) RecoverOption {
	return func(cfg *RecoverConfig) {
		if fn != nil {
			cfg.Respond = fn
		}
	}
}

// Recover turns a panic in the handler chain into a logged PanicError and a 500 response.
func Recover(opts ...RecoverOption) func(http.Handler) http.Handler {
	cfg := &RecoverConfig{
		Logger:    logger.NewNope(),
		StackSize: DefaultStackSize,
		Respond: func(w http.ResponseWriter, _ *http.Request, _ *PanicError) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				p := &PanicError{Value: v}
				attrs := []any{slog.Any("panic", v)}
				if cfg.StackSize > 0 {
					stack := make([]byte, cfg.StackSize)
					p.Stack = stack[:runtime.Stack(stack, false)]
					attrs = append(attrs, slog.String("stack", string(p.Stack)))
				}

				cfg.Logger.ErrorContext(r.Context(), "panic recovered", attrs...)
				cfg.Respond(w, r, p)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
