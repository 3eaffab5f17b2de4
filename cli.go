package qrmail

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Run executes one CLI invocation. The document is read from the first argument,
// or from stdin when there is none or it is "-". The reply is written to stdout.
// It returns the process exit code: 0 iff the reply reports success.
func (a *App) Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	in := stdin
	if len(args) > 0 && args[0] != "-" {
		in = strings.NewReader(args[0])
	}

	reply := a.Execute(ctx, in)
	if err := WriteReply(stdout, reply); err != nil {
		a.logger.ErrorContext(ctx, "failed to write reply", slog.String("error", err.Error()))
		return 1
	}
	if !reply.Success {
		return 1
	}
	return 0
}
