package qrmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/qrmail/pkg/batch"
	"github.com/dmitrymomot/qrmail/pkg/logger"
	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/mailer/resend"
	"github.com/dmitrymomot/qrmail/pkg/relay"
	"github.com/dmitrymomot/qrmail/pkg/sanitizer"
)

// App turns input documents into delivered check-in mail.
// App is immutable after creation and safe for concurrent use.
type App struct {
	cfg        Config
	logger     *slog.Logger
	factory    batch.SessionFactory
	renderer   batch.Renderer
	partitions int
	dispatcher *batch.Dispatcher
}

// New creates an application from cfg.
func New(cfg Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		logger:     logger.NewNope(),
		partitions: cfg.Partitions,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.renderer == nil {
		var ropts []mailer.RendererOption
		if cfg.Mailer.EscapeFields {
			ropts = append(ropts, mailer.WithFieldSanitizer(sanitizer.StripTags))
		}
		r, err := mailer.NewRenderer(ropts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		a.renderer = r
	}

	if a.factory == nil {
		f, err := a.sessionFactory()
		if err != nil {
			return nil, err
		}
		a.factory = f
	}

	a.dispatcher = batch.New(a.factory, a.renderer,
		batch.WithLogger(a.logger),
		batch.WithPartitions(a.partitions),
	)
	return a, nil
}

func (a *App) sessionFactory() (batch.SessionFactory, error) {
	switch a.cfg.Provider {
	case "", ProviderSMTP:
		opts := append(a.cfg.Relay.Options(), relay.WithLogger(a.logger))
		return batch.RelayFactory(opts...), nil
	case ProviderResend:
		cfg := a.cfg.Resend
		return func() batch.Session { return resend.NewSession(cfg) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown mail provider %q", ErrConfig, a.cfg.Provider)
	}
}

// Deliver resolves credentials for p and sends every request in it.
// The returned error is the top-level failure also recorded in Reply.Err.
func (a *App) Deliver(ctx context.Context, p *Payload) (Reply, error) {
	creds, err := a.cfg.Credentials(p.Envelope)
	if err != nil {
		a.logger.ErrorContext(ctx, "credentials unavailable", slog.String("error", err.Error()))
		return Failure(err, p.Batch), err
	}

	outcomes, err := a.dispatcher.Dispatch(ctx, p.Requests, creds)
	res := batch.Aggregate(outcomes)

	if !p.Batch {
		if len(res.Results) == 0 {
			if err == nil {
				err = errors.New("no recipient")
			}
			return Failure(err, false), err
		}
		o := res.Results[0]
		return Reply{Success: o.Success && err == nil, Message: o.Detail, Result: res, Err: err}, err
	}

	reply := Reply{Success: res.Success, Batch: true, Result: res, Err: err}
	if err != nil {
		reply.Success = false
		reply.Message = fmt.Sprintf("오류 발생: %v", err)
	}
	return reply, err
}

// Execute parses one document from r and delivers it. Every failure is reported
// in the reply, in the shape matching the document when it could be read.
func (a *App) Execute(ctx context.Context, r io.Reader) Reply {
	data, err := io.ReadAll(r)
	if err != nil {
		return Failure(fmt.Errorf("%w: read: %w", ErrInvalidPayload, err), false)
	}

	p, err := Parse(bytes.NewReader(data))
	if err != nil {
		a.logger.WarnContext(ctx, "invalid payload", slog.String("error", err.Error()))
		return Failure(err, looksLikeBatch(data))
	}

	reply, _ := a.Deliver(ctx, p)
	return reply
}

// looksLikeBatch reports whether data is a JSON object carrying an "emails" key.
func looksLikeBatch(data []byte) bool {
	var doc object
	if json.Unmarshal(data, &doc) != nil {
		return false
	}
	_, _, ok := doc.lookup(keysEmails)
	return ok
}
