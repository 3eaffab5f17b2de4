// Package qrmail delivers QR check-in mail to one recipient or a whole batch
// over a single authenticated relay session.
//
// An input document is either one recipient:
//
//	{"to_email": "a@example.com", "name": "Alice", "team": "Blue",
//	 "check_in_url": "https://example.com/c/1", "qr_image_base64": "data:image/png;base64,..."}
//
// or a batch envelope with an "emails" list of such recipients. SMTP fields
// (smtp_server, smtp_port, smtp_username, smtp_password, from_email) may be given
// inline; missing ones fall back to the environment, see Config.
//
// # Quick Start
//
//	cfg, err := qrmail.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	app, err := qrmail.New(cfg, qrmail.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	os.Exit(app.Run(ctx, os.Args[1:], os.Stdin, os.Stdout))
//
// Run prints one JSON object and returns 0 iff every recipient was sent.
// Serve exposes the same operation as POST /v1/send.
//
// # Failure scope
//
// A recipient with bad fields or a message the relay rejects fails alone. A session
// that cannot be opened fails every recipient. A session whose transport breaks
// mid-batch fails the current and all remaining recipients; earlier ones stay sent.
package qrmail
