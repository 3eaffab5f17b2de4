package batch

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/qrmail/pkg/logger"
	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

// Session is one delivery channel, opened once and used for many messages.
// *relay.Session implements it.
type Session interface {
	Open(ctx context.Context, creds relay.Credentials) error
	Send(ctx context.Context, msg *mailer.Message, from string) error
	Close() error
}

// SessionFactory returns a new, unopened session.
type SessionFactory func() Session

// RelayFactory creates SMTP relay sessions with the given options.
func RelayFactory(opts ...relay.Option) SessionFactory {
	return func() Session {
		return relay.New(opts...)
	}
}

// Renderer turns a request into a message. *mailer.Renderer implements it.
type Renderer interface {
	Render(req mailer.Request) (*mailer.Message, error)
}

// Dispatcher delivers a batch of requests over as few sessions as possible.
type Dispatcher struct {
	factory    SessionFactory
	renderer   Renderer
	logger     *slog.Logger
	partitions int
}

// New creates a dispatcher.
func New(factory SessionFactory, renderer Renderer, opts ...Option) *Dispatcher {
	d := defaultDispatcher()
	d.factory = factory
	d.renderer = renderer
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one message per request and returns one outcome per request,
// in input order.
//
// A session that fails to open marks every request of its partition failed
// without rendering anything. A rejected or unrenderable request fails alone.
// A broken session fails the current request and every request after it.
// Each session is closed exactly once, whatever happened.
//
// The error is non-nil only when ctx ends the batch early; the outcomes then
// cover the requests attempted so far.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []mailer.Request, creds relay.Credentials) ([]Outcome, error) {
	if logger.BatchID(ctx) == "" {
		ctx = logger.WithBatchID(ctx, uuid.NewString())
	}

	parts := split(reqs, d.partitions)
	start := time.Now()
	d.logger.InfoContext(ctx, "batch started",
		slog.Int("total", len(reqs)),
		slog.Int("sessions", len(parts)),
		slog.Any("relay", creds),
	)

	results := make([][]Outcome, len(parts))
	var g errgroup.Group
	for i, part := range parts {
		g.Go(func() error {
			out, err := d.dispatchPart(ctx, part, creds)
			results[i] = out
			return err
		})
	}
	err := g.Wait()
	outcomes := slices.Concat(results...)

	res := Aggregate(outcomes)
	d.logger.InfoContext(ctx, "batch finished",
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("attempted", res.Total),
		slog.Duration("took", time.Since(start)),
	)
	if err != nil {
		d.logger.WarnContext(ctx, "batch interrupted", slog.String("error", err.Error()))
	}
	return outcomes, err
}

func (d *Dispatcher) dispatchPart(ctx context.Context, reqs []mailer.Request, creds relay.Credentials) ([]Outcome, error) {
	s := d.factory()
	defer func() {
		if err := s.Close(); err != nil {
			d.logger.WarnContext(ctx, "session close failed", slog.String("error", err.Error()))
		}
	}()

	if err := s.Open(ctx, creds); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		d.logger.ErrorContext(ctx, "session open failed",
			slog.String("error", err.Error()),
			slog.Int("recipients", len(reqs)),
		)
		out := make([]Outcome, len(reqs))
		for i, req := range reqs {
			out[i] = unreachable(req.To, err)
		}
		return out, nil
	}

	out := make([]Outcome, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		log := d.logger.With(slog.Int("index", i+1), slog.Int("of", len(reqs)), slog.String("to", req.To))

		msg, err := d.renderer.Render(req)
		if err != nil {
			log.WarnContext(ctx, "render failed", slog.String("error", err.Error()))
			out = append(out, failed(req.To, err))
			continue
		}

		err = s.Send(ctx, msg, creds.From)
		if err == nil {
			log.DebugContext(ctx, "message sent")
			out = append(out, sent(req.To))
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			// Only a message that reached the wire counts as attempted.
			var sendErr *relay.SendError
			if errors.As(err, &sendErr) {
				out = append(out, failed(req.To, err))
			}
			return out, ctxErr
		}

		log.WarnContext(ctx, "send failed", slog.String("error", err.Error()))
		out = append(out, failed(req.To, err))

		if errors.Is(err, relay.ErrSessionBroken) || errors.Is(err, relay.ErrInvalidState) {
			cause := err
			var sendErr *relay.SendError
			if errors.As(err, &sendErr) {
				cause = sendErr.Err
			}
			rest := reqs[i+1:]
			d.logger.ErrorContext(ctx, "session lost, skipping remaining recipients",
				slog.String("error", cause.Error()),
				slog.Int("skipped", len(rest)),
			)
			for _, r := range rest {
				out = append(out, failed(r.To, cause))
			}
			return out, nil
		}
	}
	return out, nil
}

// split cuts reqs into at most n contiguous, non-empty parts of near-equal size.
// An empty batch still yields one (empty) part.
func split(reqs []mailer.Request, n int) [][]mailer.Request {
	if n > len(reqs) {
		n = len(reqs)
	}
	if n <= 1 {
		return [][]mailer.Request{reqs}
	}

	parts := make([][]mailer.Request, 0, n)
	size, extra := len(reqs)/n, len(reqs)%n
	for start := 0; start < len(reqs); {
		end := start + size
		if extra > 0 {
			end++
			extra--
		}
		parts = append(parts, reqs[start:end])
		start = end
	}
	return parts
}
