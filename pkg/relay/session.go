package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/qrmail/pkg/mailer"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateSending
	StateBroken
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateSending:
		return "sending"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// expired is a deadline in the past, used to interrupt blocked I/O on cancellation.
var expired = time.Unix(1, 0)

// Session owns one authenticated connection to a mail relay.
//
// Sends are strictly sequential: the mutex serializes every protocol exchange, so
// a Session may be shared but never carries two messages at once. Open it once,
// send any number of messages, then Close it exactly once (Close is idempotent).
type Session struct {
	opts *options

	mu     sync.Mutex // serializes protocol exchanges
	state  atomic.Int32
	conn   net.Conn
	client *smtp.Client
	cause  error // transport fault that broke the session
}

// New creates an unopened session.
func New(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Session{opts: o}
}

// Open creates a session and opens it.
// On failure the returned session is nil and nothing is left to close.
func Open(ctx context.Context, creds Credentials, opts ...Option) (*Session, error) {
	s := New(opts...)
	if err := s.Open(ctx, creds); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Open connects to creds.Addr(), upgrades with STARTTLS and authenticates.
// The whole exchange is bounded by the dial timeout.
//
// Failures match ErrConnect, ErrTLS, ErrAuth or ErrTimeout and leave the session
// closed. Open may only be called once.
func (s *Session) Open(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateUnopened {
		return fmt.Errorf("%w: open in %s state", ErrInvalidState, st)
	}
	s.setState(StateOpening)

	log := s.opts.logger.With(slog.Any("relay", creds))
	start := time.Now()

	client, conn, err := s.handshake(ctx, creds)
	if err != nil {
		s.setState(StateClosed)
		log.WarnContext(ctx, "relay session open failed", slog.String("error", err.Error()))
		return err
	}

	s.client, s.conn = client, conn
	s.setState(StateOpen)
	log.DebugContext(ctx, "relay session opened", slog.Duration("took", time.Since(start)))
	return nil
}

func (s *Session) handshake(ctx context.Context, creds Credentials) (*smtp.Client, net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.dialTimeout)
	defer cancel()

	conn, err := s.opts.dial(ctx, "tcp", creds.Addr())
	if err != nil {
		return nil, nil, openError(ctx, ErrConnect, "dial "+creds.Addr(), err)
	}

	// The handshake shares the dial deadline; cancellation interrupts blocked reads.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(expired) })

	client, err := s.negotiate(ctx, conn, creds)
	if !stop() && err == nil {
		err = openError(ctx, ErrConnect, "handshake", ctx.Err())
		_ = client.Close()
	}
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	_ = conn.SetDeadline(time.Time{})
	return client, conn, nil
}

func (s *Session) negotiate(ctx context.Context, conn net.Conn, creds Credentials) (*smtp.Client, error) {
	client, err := smtp.NewClient(conn, creds.Host)
	if err != nil {
		return nil, openError(ctx, ErrConnect, "greeting", err)
	}
	if err := client.Hello(s.opts.localName); err != nil {
		return nil, openError(ctx, ErrConnect, "ehlo", err)
	}

	if s.opts.tlsPolicy != NoTLS {
		ok, _ := client.Extension("STARTTLS")
		switch {
		case ok:
			if err := client.StartTLS(s.tlsConfig(creds.Host)); err != nil {
				return nil, openError(ctx, ErrTLS, "starttls", err)
			}
		case s.opts.tlsPolicy == TLSMandatory:
			return nil, fmt.Errorf("%w: relay does not advertise STARTTLS", ErrTLS)
		}
	}

	if creds.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return nil, fmt.Errorf("%w: relay does not advertise AUTH", ErrAuth)
		}
		auth := smtp.PlainAuth("", creds.Username, creds.Password, creds.Host)
		if err := client.Auth(auth); err != nil {
			return nil, openError(ctx, ErrAuth, "auth", err)
		}
	}

	return client, nil
}

func (s *Session) tlsConfig(host string) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.opts.tlsConfig != nil {
		cfg = s.opts.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// openError classifies a handshake failure. Deadline expiry wins over the step's kind.
func openError(ctx context.Context, kind error, step string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %s: %w", kind, step, context.Canceled)
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		return fmt.Errorf("%w: %s: %v", ErrTimeout, step, err)
	default:
		return fmt.Errorf("%w: %s: %v", kind, step, err)
	}
}

// Send transmits one message from the given sender address.
//
// A relay rejection returns a *SendError matching ErrRejected and keeps the session
// open. A transport fault returns a *SendError matching ErrSessionBroken and breaks
// the session: later calls fail with ErrSessionBroken without network I/O.
// Sending on an unopened or closed session fails with ErrInvalidState.
func (s *Session) Send(ctx context.Context, msg *mailer.Message, from string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.State(); st {
	case StateOpen:
	case StateBroken:
		return fmt.Errorf("%w: %v", ErrSessionBroken, s.cause)
	default:
		return fmt.Errorf("%w: send in %s state", ErrInvalidState, st)
	}
	if msg == nil {
		return &SendError{Err: fmt.Errorf("%w: %w", ErrRejected, mailer.ErrNoRecipient)}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := msg.Compose(from)
	if err != nil {
		return &SendError{To: msg.To, Err: fmt.Errorf("%w: %w", ErrRejected, err)}
	}
	// The envelope sender is the bare address, even when From carries a display name.
	envelopeFrom, err := content.GetSender(false)
	if err != nil {
		return &SendError{To: msg.To, Err: fmt.Errorf("%w: sender: %v", ErrRejected, err)}
	}

	s.setState(StateSending)
	err = s.transmit(ctx, msg.To, envelopeFrom, content)
	if err == nil {
		s.setState(StateOpen)
		return nil
	}

	if isTransportFault(err) {
		s.breakWith(ctx, err)
		return &SendError{To: msg.To, Err: fmt.Errorf("%w: %v", ErrSessionBroken, err)}
	}

	// The relay refused this message; clear the transaction for the next one.
	if rerr := s.reset(); rerr != nil && isTransportFault(rerr) {
		s.breakWith(ctx, rerr)
	} else {
		s.setState(StateOpen)
	}
	return &SendError{To: msg.To, Err: fmt.Errorf("%w: %v", ErrRejected, err)}
}

func (s *Session) transmit(ctx context.Context, to, from string, content io.WriterTo) error {
	deadline := time.Now().Add(s.opts.sendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)
	defer s.conn.SetDeadline(time.Time{}) //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetDeadline(expired) })
	defer stop()

	if err := s.client.Mail(from); err != nil {
		return err
	}
	if err := s.client.Rcpt(to); err != nil {
		return err
	}

	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := content.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", errInterrupted, err)
	}
	return w.Close()
}

func (s *Session) reset() error {
	_ = s.conn.SetDeadline(time.Now().Add(s.opts.closeTimeout))
	defer s.conn.SetDeadline(time.Time{}) //nolint:errcheck
	return s.client.Reset()
}

func (s *Session) breakWith(ctx context.Context, err error) {
	s.cause = err
	s.setState(StateBroken)
	s.opts.logger.WarnContext(ctx, "relay session broken", slog.String("error", err.Error()))
}

// Close ends the session with QUIT and releases the connection.
// It is idempotent, and a no-op on a session that never opened.
// A broken session is released without QUIT.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch s.State() {
	case StateOpen:
		_ = s.conn.SetDeadline(time.Now().Add(s.opts.closeTimeout))
		if qerr := s.client.Quit(); qerr != nil {
			_ = s.client.Close()
			err = fmt.Errorf("relay: quit: %w", qerr)
		}
	case StateBroken:
		_ = s.client.Close()
	default:
		return nil
	}

	s.client, s.conn = nil, nil
	s.setState(StateClosed)
	s.opts.logger.Debug("relay session closed")
	return err
}
