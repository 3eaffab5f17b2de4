package relay_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

const sender = "events@example.com"

func credsFor(r *fakeRelay) relay.Credentials {
	return relay.Credentials{
		Host:     r.host(),
		Port:     r.port(),
		Username: "mailer@example.com",
		Password: "app-password",
		From:     sender,
	}
}

func message(to string) *mailer.Message {
	return &mailer.Message{
		To:        to,
		Subject:   "Check-in",
		HTML:      "<p>hello</p>",
		Image:     []byte("\x89PNG\r\n\x1a\nfake"),
		ImageName: mailer.DefaultImageName,
		ImageType: "image/png",
		ContentID: mailer.ContentID,
	}
}

func plain(opts ...relay.Option) []relay.Option {
	return append([]relay.Option{
		relay.WithTLSPolicy(relay.NoTLS),
		relay.WithDialTimeout(2 * time.Second),
		relay.WithSendTimeout(2 * time.Second),
	}, opts...)
}

func TestSession_SendSequence(t *testing.T) {
	t.Parallel()

	srv := startRelay(t)
	s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
	require.NoError(t, err)
	assert.Equal(t, relay.StateOpen, s.State())

	require.NoError(t, s.Send(context.Background(), message("a@example.com"), sender))
	require.NoError(t, s.Send(context.Background(), message("b@example.com"), sender))
	require.NoError(t, s.Close())
	assert.Equal(t, relay.StateClosed, s.State())

	delivered := srv.Delivered()
	require.Len(t, delivered, 2)
	assert.Equal(t, sender, delivered[0].From)
	assert.Equal(t, []string{"a@example.com"}, delivered[0].To)
	assert.Equal(t, []string{"b@example.com"}, delivered[1].To)
	assert.Contains(t, delivered[0].Data, "qr_code")
	assert.Contains(t, delivered[0].Data, "multipart/related")

	assert.Equal(t, 1, srv.Quits())
	assert.Contains(t, srv.Commands(), "AUTH")
}

func TestSession_SendDisplayNameSender(t *testing.T) {
	t.Parallel()

	srv := startRelay(t)
	s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), message("a@example.com"), "행사팀 <"+sender+">"))

	delivered := srv.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, sender, delivered[0].From, "envelope sender is the bare address")
	assert.Contains(t, delivered[0].Data, "<"+sender+">")
}

func TestSession_Open(t *testing.T) {
	t.Parallel()

	t.Run("auth rejected", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withDeniedAuth())
		s := relay.New(plain()...)
		err := s.Open(context.Background(), credsFor(srv))
		require.ErrorIs(t, err, relay.ErrAuth)
		assert.Equal(t, relay.StateClosed, s.State())
		assert.NoError(t, s.Close())
	})

	t.Run("auth not offered", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withoutAuth())
		_, err := relay.Open(context.Background(), credsFor(srv), plain()...)
		require.ErrorIs(t, err, relay.ErrAuth)
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().(*net.TCPAddr)
		require.NoError(t, ln.Close())

		creds := relay.Credentials{Host: "127.0.0.1", Port: addr.Port, Username: "u", Password: "p", From: sender}
		_, err = relay.Open(context.Background(), creds, plain()...)
		require.ErrorIs(t, err, relay.ErrConnect)
	})

	t.Run("silent relay times out", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withSilence())
		start := time.Now()
		_, err := relay.Open(context.Background(), credsFor(srv), plain(relay.WithDialTimeout(200*time.Millisecond))...)
		require.ErrorIs(t, err, relay.ErrTimeout)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("mandatory TLS not offered", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t)
		_, err := relay.Open(context.Background(), credsFor(srv),
			relay.WithTLSPolicy(relay.TLSMandatory),
			relay.WithDialTimeout(2*time.Second),
		)
		require.ErrorIs(t, err, relay.ErrTLS)
		assert.NotContains(t, srv.Commands(), "AUTH")
	})

	t.Run("opportunistic TLS not offered", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t)
		s, err := relay.Open(context.Background(), credsFor(srv),
			relay.WithTLSPolicy(relay.TLSOpportunistic),
			relay.WithDialTimeout(2*time.Second),
		)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withSilence())
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)

		_, err := relay.Open(ctx, credsFor(srv), plain()...)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("open twice", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t)
		s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.ErrorIs(t, s.Open(context.Background(), credsFor(srv)), relay.ErrInvalidState)
	})
}

func TestSession_STARTTLS(t *testing.T) {
	t.Parallel()

	serverTLS, clientTLS := testCertificates(t)
	srv := startRelay(t, withSTARTTLS(serverTLS))

	s, err := relay.Open(context.Background(), credsFor(srv),
		relay.WithTLSPolicy(relay.TLSMandatory),
		relay.WithTLSConfig(clientTLS),
		relay.WithDialTimeout(2*time.Second),
	)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), message("a@example.com"), sender))
	require.NoError(t, s.Close())

	assert.Contains(t, srv.Commands(), "STARTTLS")
	assert.Len(t, srv.Delivered(), 1)
}

func TestSession_Rejection(t *testing.T) {
	t.Parallel()

	t.Run("recipient rejected", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withRejectedRcpt("nobody@example.com"))
		s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
		require.NoError(t, err)

		err = s.Send(context.Background(), message("nobody@example.com"), sender)
		require.ErrorIs(t, err, relay.ErrRejected)
		require.NotErrorIs(t, err, relay.ErrSessionBroken)

		var sendErr *relay.SendError
		require.ErrorAs(t, err, &sendErr)
		assert.Equal(t, "nobody@example.com", sendErr.To)
		assert.Equal(t, relay.StateOpen, s.State())

		require.NoError(t, s.Send(context.Background(), message("a@example.com"), sender))
		require.NoError(t, s.Close())

		assert.Contains(t, srv.Commands(), "RSET")
		assert.Len(t, srv.Delivered(), 1)
	})

	t.Run("data rejected", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t, withRejectedData("big@example.com"))
		s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.ErrorIs(t, s.Send(context.Background(), message("big@example.com"), sender), relay.ErrRejected)
		require.NoError(t, s.Send(context.Background(), message("a@example.com"), sender))
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		srv := startRelay(t)
		s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		err = s.Send(context.Background(), message("not an address"), sender)
		require.ErrorIs(t, err, relay.ErrRejected)
		assert.Equal(t, relay.StateOpen, s.State())
	})
}

func TestSession_Broken(t *testing.T) {
	t.Parallel()

	srv := startRelay(t, withDropOnRcpt("drop@example.com"))
	s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
	require.NoError(t, err)

	err = s.Send(context.Background(), message("drop@example.com"), sender)
	require.ErrorIs(t, err, relay.ErrSessionBroken)
	assert.Equal(t, relay.StateBroken, s.State())

	before := len(srv.Commands())
	err = s.Send(context.Background(), message("a@example.com"), sender)
	require.ErrorIs(t, err, relay.ErrSessionBroken)
	assert.Len(t, srv.Commands(), before, "broken session must not touch the network")

	require.NoError(t, s.Close())
	assert.Equal(t, relay.StateClosed, s.State())
	assert.Zero(t, srv.Quits())
}

func TestSession_InvalidState(t *testing.T) {
	t.Parallel()

	s := relay.New(plain()...)
	require.ErrorIs(t, s.Send(context.Background(), message("a@example.com"), sender), relay.ErrInvalidState)

	srv := startRelay(t)
	require.NoError(t, s.Open(context.Background(), credsFor(srv)))
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Send(context.Background(), message("a@example.com"), sender), relay.ErrInvalidState)
}

func TestSession_CloseIdempotent(t *testing.T) {
	t.Parallel()

	srv := startRelay(t)
	s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, srv.Quits())

	require.NoError(t, relay.New().Close())
}

func TestSession_CanceledSend(t *testing.T) {
	t.Parallel()

	srv := startRelay(t)
	s, err := relay.Open(context.Background(), credsFor(srv), plain()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Send(ctx, message("a@example.com"), sender), context.Canceled)
	assert.Equal(t, relay.StateOpen, s.State())
	assert.Empty(t, srv.Delivered())
}
