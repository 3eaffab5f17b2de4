package qrmail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmail"
	"github.com/dmitrymomot/qrmail/pkg/batch"
	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

var qrPNG = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRqr"))

func testConfig() qrmail.Config {
	return qrmail.Config{
		SMTPServer:   "smtp.example.com",
		SMTPPort:     587,
		SMTPUsername: "events@example.com",
		SMTPPassword: "app-password",
		FromEmail:    "events@example.com",
		Provider:     qrmail.ProviderSMTP,
		Partitions:   1,
	}
}

// recorder is a session factory whose sessions share one log of calls.
type recorder struct {
	openErr  error
	rejected map[string]bool

	mu     sync.Mutex
	opens  int
	closes int
	creds  []relay.Credentials
	sent   []string
}

func (r *recorder) factory() batch.SessionFactory {
	return func() batch.Session { return &recordedSession{r: r} }
}

func (r *recorder) stats() (opens, closes int, sent []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens, r.closes, append([]string(nil), r.sent...)
}

type recordedSession struct {
	r *recorder
}

func (s *recordedSession) Open(_ context.Context, creds relay.Credentials) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.opens++
	s.r.creds = append(s.r.creds, creds)
	return s.r.openErr
}

func (s *recordedSession) Send(_ context.Context, msg *mailer.Message, _ string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.rejected[msg.To] {
		return &relay.SendError{To: msg.To, Err: fmt.Errorf("%w: 550 mailbox unavailable", relay.ErrRejected)}
	}
	s.r.sent = append(s.r.sent, msg.To)
	return nil
}

func (s *recordedSession) Close() error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.closes++
	return nil
}

func newApp(t *testing.T, cfg qrmail.Config, rec *recorder) *qrmail.App {
	t.Helper()
	app, err := qrmail.New(cfg, qrmail.WithSessionFactory(rec.factory()))
	require.NoError(t, err)
	return app
}

func recipient(to string) map[string]any {
	return map[string]any{
		"to_email":        to,
		"name":            "Alice",
		"team":            "Blue",
		"check_in_url":    "https://example.com/check-in/1",
		"qr_image_base64": "data:image/png;base64," + qrPNG,
	}
}

func batchDoc(to ...string) map[string]any {
	emails := make([]map[string]any, 0, len(to))
	for _, addr := range to {
		emails = append(emails, recipient(addr))
	}
	return map[string]any{"emails": emails}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}
