// Package relay keeps one authenticated SMTP session open across many messages.
//
// A batch of mails is delivered over a single connection: the session dials the relay,
// upgrades it with STARTTLS and authenticates once, then carries each message with its
// own MAIL/RCPT/DATA transaction. Messages are composed by mailer.Message.Compose.
//
// # Lifecycle
//
//	unopened -> opening -> open <-> sending -> open
//	                         |          |
//	                         |          +-> broken (transport fault)
//	                         v                 v
//	                       closed <------------+
//
// Open may be called once. A failed Open leaves the session closed. Close is idempotent
// and is a no-op on a session that never opened.
//
// # Usage
//
//	s, err := relay.Open(ctx, relay.Credentials{
//		Host:     "smtp.gmail.com",
//		Port:     587,
//		Username: "events@example.com",
//		Password: os.Getenv("SMTP_PASSWORD"),
//		From:     "events@example.com",
//	}, relay.WithLogger(log))
//	if err != nil {
//		return err // ErrConnect, ErrTLS, ErrAuth or ErrTimeout
//	}
//	defer s.Close()
//
//	for _, msg := range messages {
//		err := s.Send(ctx, msg, "events@example.com")
//		switch {
//		case errors.Is(err, relay.ErrRejected):
//			// this recipient failed, keep going
//		case errors.Is(err, relay.ErrSessionBroken):
//			// the connection is gone
//		}
//	}
//
// # Errors
//
// A reply from the relay is a rejection of that one message, except 421 which means
// the relay is shutting the connection down. Network errors, EOF and interrupted DATA
// break the session.
package relay
