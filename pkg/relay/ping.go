package relay

import (
	"context"
	"net"
	"net/textproto"
	"time"
)

// Ping checks that a relay accepts connections and greets with 220.
// It does not authenticate. The signature matches health.CheckFunc once addr is bound.
func Ping(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return openError(ctx, ErrConnect, "dial "+addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	tp := textproto.NewConn(conn)
	if _, _, err := tp.ReadResponse(220); err != nil {
		return openError(ctx, ErrConnect, "greeting", err)
	}
	_ = tp.PrintfLine("QUIT")
	_, _, _ = tp.ReadResponse(221)
	return nil
}
