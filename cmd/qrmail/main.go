package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/qrmail"
	"github.com/dmitrymomot/qrmail/pkg/logger"
)

const usage = `Usage:
  qrmail [send] [JSON|-]   deliver one document, read from the argument or stdin
  qrmail serve [-addr :8080]  serve POST /v1/send, /healthz and /readyz
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "send"
	if len(args) > 0 {
		switch args[0] {
		case "send", "serve":
			cmd, args = args[0], args[1:]
		case "-h", "-help", "--help", "help":
			fmt.Fprint(os.Stderr, usage)
			return 0
		}
	}

	cfg, err := qrmail.LoadConfig()
	if err != nil {
		// Configuration errors are still reported as a JSON reply.
		_ = qrmail.WriteReply(os.Stdout, qrmail.Failure(err, false))
		return 1
	}

	log := logger.NewWithSentry(cfg.Log, cfg.Sentry, logger.BatchIDExtractor(), logger.RequestIDExtractor())
	defer logger.Flush(2 * time.Second)

	if cmd == "serve" {
		fs := flag.NewFlagSet("serve", flag.ContinueOnError)
		fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
		if err := fs.Parse(args); err != nil {
			return 2
		}
	}

	app, err := qrmail.New(cfg, qrmail.WithLogger(log))
	if err != nil {
		log.Error("failed to initialize", slog.String("error", err.Error()))
		if cmd == "send" {
			_ = qrmail.WriteReply(os.Stdout, qrmail.Failure(err, false))
		}
		return 1
	}

	if cmd == "serve" {
		if err := app.Serve(context.Background()); err != nil {
			log.Error("server error", slog.String("error", err.Error()))
			return 1
		}
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx, args, os.Stdin, os.Stdout)
}
