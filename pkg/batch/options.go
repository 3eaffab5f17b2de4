package batch

import (
	"log/slog"

	"github.com/dmitrymomot/qrmail/pkg/logger"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
// If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPartitions splits a batch into n contiguous parts, each sent over its own session
// concurrently. Outcomes are still returned in input order.
// Default: 1 (one session for the whole batch)
func WithPartitions(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.partitions = n
		}
	}
}

func defaultDispatcher() *Dispatcher {
	return &Dispatcher{
		logger:     logger.NewNope(),
		partitions: 1,
	}
}
