package relay_test

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRelay is a minimal in-process SMTP server.
type fakeRelay struct {
	ln net.Listener

	tlsConfig  *tls.Config      // advertise STARTTLS when set
	noAuth     bool             // do not advertise AUTH
	denyAuth   bool             // reject every credential
	silent     bool             // accept connections but never greet
	rejectRcpt map[string]bool  // 550 on RCPT
	dropOnRcpt map[string]bool  // close the connection on RCPT
	rejectData map[string]bool  // 552 after DATA payload

	mu        sync.Mutex
	commands  []string
	delivered []delivery
	quits     int
	conns     int
}

type delivery struct {
	From string
	To   []string
	Data string
}

type relayOption func(*fakeRelay)

func withSTARTTLS(cfg *tls.Config) relayOption { return func(r *fakeRelay) { r.tlsConfig = cfg } }
func withoutAuth() relayOption                { return func(r *fakeRelay) { r.noAuth = true } }
func withDeniedAuth() relayOption             { return func(r *fakeRelay) { r.denyAuth = true } }
func withSilence() relayOption                { return func(r *fakeRelay) { r.silent = true } }

func withRejectedRcpt(addrs ...string) relayOption {
	return func(r *fakeRelay) {
		for _, a := range addrs {
			r.rejectRcpt[a] = true
		}
	}
}

func withDropOnRcpt(addrs ...string) relayOption {
	return func(r *fakeRelay) {
		for _, a := range addrs {
			r.dropOnRcpt[a] = true
		}
	}
}

func withRejectedData(addrs ...string) relayOption {
	return func(r *fakeRelay) {
		for _, a := range addrs {
			r.rejectData[a] = true
		}
	}
}

func startRelay(t *testing.T, opts ...relayOption) *fakeRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &fakeRelay{
		ln:         ln,
		rejectRcpt: map[string]bool{},
		dropOnRcpt: map[string]bool{},
		rejectData: map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.conns++
			r.mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				r.serve(conn)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})
	return r
}

func (r *fakeRelay) host() string {
	host, _, _ := net.SplitHostPort(r.ln.Addr().String())
	return host
}

func (r *fakeRelay) port() int {
	_, port, _ := net.SplitHostPort(r.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

func (r *fakeRelay) record(cmd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *fakeRelay) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func (r *fakeRelay) Delivered() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.delivered...)
}

func (r *fakeRelay) Quits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quits
}

func (r *fakeRelay) serve(conn net.Conn) {
	if r.silent {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake.relay ESMTP ready")

	secure := false
	var current delivery
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		r.record(verb)

		switch verb {
		case "EHLO":
			lines := []string{"fake.relay", "8BITMIME"}
			if r.tlsConfig != nil && !secure {
				lines = append(lines, "STARTTLS")
			}
			if !r.noAuth {
				lines = append(lines, "AUTH PLAIN LOGIN")
			}
			for i, l := range lines {
				sep := "-"
				if i == len(lines)-1 {
					sep = " "
				}
				_ = tp.PrintfLine("250%s%s", sep, l)
			}
		case "HELO", "NOOP":
			_ = tp.PrintfLine("250 OK")
		case "STARTTLS":
			_ = tp.PrintfLine("220 2.0.0 Ready to start TLS")
			tlsConn := tls.Server(conn, r.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(tlsConn)
			secure = true
		case "AUTH":
			if r.denyAuth {
				_ = tp.PrintfLine("535 5.7.8 Authentication credentials invalid")
				continue
			}
			_ = tp.PrintfLine("235 2.7.0 Authentication successful")
		case "MAIL":
			current = delivery{From: addrOf(arg)}
			_ = tp.PrintfLine("250 2.1.0 OK")
		case "RCPT":
			to := addrOf(arg)
			if r.dropOnRcpt[to] {
				return
			}
			if r.rejectRcpt[to] {
				_ = tp.PrintfLine("550 5.1.1 User unknown")
				continue
			}
			current.To = append(current.To, to)
			_ = tp.PrintfLine("250 2.1.5 OK")
		case "DATA":
			_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			if len(current.To) > 0 && r.rejectData[current.To[0]] {
				_ = tp.PrintfLine("552 5.3.4 Message too big")
				continue
			}
			current.Data = string(data)
			r.mu.Lock()
			r.delivered = append(r.delivered, current)
			r.mu.Unlock()
			current = delivery{}
			_ = tp.PrintfLine("250 2.0.0 OK queued")
		case "RSET":
			current = delivery{}
			_ = tp.PrintfLine("250 2.0.0 OK")
		case "QUIT":
			r.mu.Lock()
			r.quits++
			r.mu.Unlock()
			_ = tp.PrintfLine("221 2.0.0 Bye")
			return
		default:
			_ = tp.PrintfLine("502 5.5.2 Command not recognized")
		}
	}
}

// addrOf extracts the address from "FROM:<a@b> BODY=8BITMIME" style arguments.
func addrOf(arg string) string {
	start := strings.IndexByte(arg, '<')
	end := strings.IndexByte(arg, '>')
	if start == -1 || end < start {
		return arg
	}
	return arg[start+1 : end]
}

// testCertificates borrows the httptest certificate (valid for 127.0.0.1) for STARTTLS.
func testCertificates(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	ts.StartTLS()
	t.Cleanup(ts.Close)

	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())

	return &tls.Config{Certificates: ts.TLS.Certificates}, &tls.Config{RootCAs: pool}
}
