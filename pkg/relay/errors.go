package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"syscall"
)

// Session establishment failures. Any of them is fatal for a whole batch.
var (
	ErrConnect = errors.New("relay: connection failed")
	ErrTLS     = errors.New("relay: TLS upgrade failed")
	ErrAuth    = errors.New("relay: authentication failed")
	ErrTimeout = errors.New("relay: timed out")
)

// Delivery and lifecycle failures.
var (
	// ErrRejected is matched by a SendError when the relay refused one message.
	// The session stays usable.
	ErrRejected = errors.New("relay: message rejected")

	// ErrSessionBroken is matched when the transport failed. Every later Send on the
	// same session fails with it without touching the network.
	ErrSessionBroken = errors.New("relay: session broken")

	// ErrInvalidState is returned for operations the current state does not allow.
	ErrInvalidState = errors.New("relay: invalid session state")
)

// errInterrupted marks a failure in the middle of the DATA payload, after which the
// protocol position on the wire is unknown.
var errInterrupted = errors.New("relay: message data interrupted")

// SendError reports the failure of one message.
// Err matches either ErrRejected or ErrSessionBroken.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isTransportFault reports whether err left the connection unusable.
// Relay replies are protocol answers, except 421 which announces the relay is closing.
func isTransportFault(err error) bool {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		return reply.Code == 421
	}
	if errors.Is(err, errInterrupted) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
