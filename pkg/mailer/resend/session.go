package resend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

// Session delivers messages through the Resend HTTP API.
// It follows the relay session contract so the batch dispatcher can drive it:
// Open checks the API key, Send posts one message, Close is a no-op.
type Session struct {
	config     Config
	httpClient *http.Client

	mu     sync.Mutex
	client *resend.Client
	state  relay.State
}

// NewSession creates an unopened session.
func NewSession(cfg Config) *Session {
	return &Session{config: cfg}
}

// NewSessionWithClient is NewSession with a custom HTTP client.
func NewSessionWithClient(cfg Config, httpClient *http.Client) *Session {
	return &Session{config: cfg, httpClient: httpClient}
}

// Open prepares the API client. Credentials other than the API key are not used,
// except From which is the sender address.
func (s *Session) Open(_ context.Context, _ relay.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != relay.StateUnopened {
		return fmt.Errorf("%w: open in %s state", relay.ErrInvalidState, s.state)
	}
	if s.config.APIKey == "" {
		s.state = relay.StateClosed
		return fmt.Errorf("%w: resend API key is not set", relay.ErrAuth)
	}

	if s.httpClient != nil {
		s.client = resend.NewCustomClient(s.httpClient, s.config.APIKey)
	} else {
		s.client = resend.NewClient(s.config.APIKey)
	}
	s.state = relay.StateOpen
	return nil
}

// Send posts one message. Every API failure is a rejection of that message;
// requests are independent, so the session never breaks.
func (s *Session) Send(ctx context.Context, msg *mailer.Message, from string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != relay.StateOpen {
		return fmt.Errorf("%w: send in %s state", relay.ErrInvalidState, s.state)
	}
	if msg == nil || msg.To == "" {
		return &relay.SendError{Err: fmt.Errorf("%w: %w", relay.ErrRejected, mailer.ErrNoRecipient)}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.Emails.SendWithContext(ctx, s.request(msg, from))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &relay.SendError{To: msg.To, Err: fmt.Errorf("%w: %w", relay.ErrRejected, ctxErr)}
		}
	}
	return &relay.SendError{To: msg.To, Err: fmt.Errorf("%w: resend: %v", relay.ErrRejected, err)}
}

func (s *Session) request(msg *mailer.Message, from string) *resend.SendEmailRequest {
	if s.config.SenderName != "" && !strings.Contains(from, "<") {
		from = fmt.Sprintf("%s <%s>", s.config.SenderName, from)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if len(msg.Image) > 0 {
		name := msg.ImageName
		if name == "" {
			name = mailer.DefaultImageName
		}
		req.Attachments = []*resend.Attachment{{
			Filename:    name,
			Content:     msg.Image,
			ContentType: msg.ImageType,
			ContentId:   msg.ContentID,
		}}
	}
	return req
}

// Close releases the session. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == relay.StateOpen {
		s.client = nil
		s.state = relay.StateClosed
	}
	return nil
}
