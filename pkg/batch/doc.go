// Package batch delivers a list of check-in mails over one session and reports
// one outcome per recipient.
//
// The Dispatcher opens a session once, renders and sends each request in order,
// and closes the session exactly once on every path. Failures are values, not
// control flow:
//
//   - session does not open: every recipient fails, nothing is rendered or sent
//   - request does not render: that recipient fails, the batch goes on
//   - relay rejects a message: that recipient fails, the batch goes on
//   - session breaks: that recipient and all later ones fail, nothing more is sent
//
// # Usage
//
//	renderer, err := mailer.NewRenderer()
//	if err != nil {
//		return err
//	}
//
//	d := batch.New(batch.RelayFactory(relay.WithLogger(log)), renderer,
//		batch.WithLogger(log),
//	)
//
//	outcomes, err := d.Dispatch(ctx, requests, creds)
//	res := batch.Aggregate(outcomes)
//
// # Partitions
//
// WithPartitions(n) splits the requests into n contiguous parts. Each part gets its
// own session and runs concurrently with the others; outcomes are merged back in
// input order. A session never carries two messages at once.
//
// # Cancellation
//
// When ctx is canceled, the current send is interrupted, sessions are closed and
// Dispatch returns the outcomes of the requests attempted so far together with
// ctx.Err().
package batch
