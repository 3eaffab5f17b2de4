package qrmail

import (
	"log/slog"

	"github.com/dmitrymomot/qrmail/pkg/batch"
)

// Option configures an App.
type Option func(*App)

// WithLogger sets the application logger.
// If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSessionFactory replaces the delivery sessions selected by Config.Provider.
func WithSessionFactory(f batch.SessionFactory) Option {
	return func(a *App) {
		if f != nil {
			a.factory = f
		}
	}
}

// WithRenderer replaces the embedded check-in template renderer.
func WithRenderer(r batch.Renderer) Option {
	return func(a *App) {
		if r != nil {
			a.renderer = r
		}
	}
}

// WithPartitions overrides Config.Partitions.
func WithPartitions(n int) Option {
	return func(a *App) {
		if n > 0 {
			a.partitions = n
		}
	}
}
