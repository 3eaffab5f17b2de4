package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/dmitrymomot/qrmail/pkg/logger"
)

// TLSPolicy decides how the plaintext connection is upgraded.
type TLSPolicy int

const (
	// TLSMandatory requires STARTTLS; a relay that does not offer it fails with ErrTLS.
	TLSMandatory TLSPolicy = iota
	// TLSOpportunistic upgrades when the relay advertises STARTTLS.
	TLSOpportunistic
	// NoTLS never upgrades. Only for local relays and tests.
	NoTLS
)

func (p TLSPolicy) String() string {
	switch p {
	case TLSMandatory:
		return "mandatory"
	case TLSOpportunistic:
		return "opportunistic"
	case NoTLS:
		return "none"
	default:
		return fmt.Sprintf("TLSPolicy(%d)", int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so the policy can be read from env.
func (p *TLSPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "mandatory", "starttls":
		*p = TLSMandatory
	case "opportunistic":
		*p = TLSOpportunistic
	case "none", "off", "plain":
		*p = NoTLS
	default:
		return fmt.Errorf("relay: unknown TLS policy %q", text)
	}
	return nil
}

// Config holds session tuning read from the environment.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	DialTimeout time.Duration `env:"SMTP_DIAL_TIMEOUT" envDefault:"30s"`
	SendTimeout time.Duration `env:"SMTP_SEND_TIMEOUT" envDefault:"60s"`
	TLSPolicy   TLSPolicy     `env:"SMTP_TLS_POLICY" envDefault:"mandatory"`
}

// Options converts the config into session options.
func (c Config) Options() []Option {
	return []Option{
		WithDialTimeout(c.DialTimeout),
		WithSendTimeout(c.SendTimeout),
		WithTLSPolicy(c.TLSPolicy),
	}
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	tlsConfig    *tls.Config
	dial         func(ctx context.Context, network, addr string) (net.Conn, error)
	localName    string
	dialTimeout  time.Duration
	sendTimeout  time.Duration
	closeTimeout time.Duration
	tlsPolicy    TLSPolicy
}

func defaultOptions() *options {
	return &options{
		logger:       logger.NewNope(),
		dial:         (&net.Dialer{}).DialContext,
		localName:    "localhost",
		dialTimeout:  30 * time.Second,
		sendTimeout:  60 * time.Second,
		closeTimeout: 10 * time.Second,
		tlsPolicy:    TLSMandatory,
	}
}

// WithDialTimeout bounds Open: dial, greeting, STARTTLS and AUTH together.
// Default: 30 seconds
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithSendTimeout bounds the exchange of a single message.
// Default: 60 seconds
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithCloseTimeout bounds the QUIT exchange.
// Default: 10 seconds
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// WithTLSPolicy sets how the connection is upgraded.
// Default: TLSMandatory
func WithTLSPolicy(p TLSPolicy) Option {
	return func(o *options) {
		o.tlsPolicy = p
	}
}

// WithTLSConfig sets the TLS configuration used for STARTTLS.
// ServerName defaults to the relay host when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithLocalName sets the name announced in EHLO.
// Default: "localhost"
func WithLocalName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.localName = name
		}
	}
}

// WithDialer replaces the network dialer.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *options) {
		if dial != nil {
			o.dial = dial
		}
	}
}

// WithLogger sets the session logger.
// If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
