package qrmail

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/qrmail/middlewares"
	"github.com/dmitrymomot/qrmail/pkg/health"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

// Default server timeouts.
const (
	defaultReadTimeout       = 15 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// Handler returns the HTTP surface:
//
//	POST /v1/send  deliver one document, replying with the CLI JSON
//	GET  /healthz  liveness
//	GET  /readyz   readiness, including a relay greeting probe
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middlewares.RequestID(),
		middlewares.Recover(
			middlewares.WithRecoverLogger(a.logger),
			middlewares.WithRecoverResponder(a.panicResponder),
		),
	)

	r.Post("/v1/send", a.handleSend)
	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(a.readinessChecks(), health.WithLogger(a.logger)))
	return r
}

func (a *App) handleSend(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if a.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.cfg.MaxBodyBytes)
	}

	reply := a.Execute(r.Context(), body)
	writeJSON(w, statusFor(reply), reply)
}

// statusFor maps a reply to an HTTP status. The body is the same either way.
func statusFor(reply Reply) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(reply.Err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(reply.Err, ErrInvalidPayload), errors.Is(reply.Err, ErrConfig):
		return http.StatusBadRequest
	case errors.Is(reply.Err, context.Canceled), errors.Is(reply.Err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case !reply.Success:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (a *App) panicResponder(w http.ResponseWriter, _ *http.Request, p *middlewares.PanicError) {
	writeJSON(w, http.StatusInternalServerError, Failure(p, false))
}

func (a *App) readinessChecks() health.Checks {
	if a.cfg.Provider == ProviderResend {
		return health.Checks{}
	}
	addr := net.JoinHostPort(a.cfg.SMTPServer, strconv.Itoa(a.cfg.SMTPPort))
	return health.Checks{
		"relay": func(ctx context.Context) error { return relay.Ping(ctx, addr) },
	}
}

func writeJSON(w http.ResponseWriter, status int, reply Reply) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = WriteReply(w, reply)
}

// Serve listens on Config.HTTPAddr and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then drains in-flight requests within Config.ShutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	// Deliveries may outlive the request write deadline, so none is set.
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("shutdown completed")
	return nil
}
