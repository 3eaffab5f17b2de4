// Package resend delivers check-in mails through the Resend HTTP API.
//
// Session satisfies the same contract as relay.Session, so a batch can be sent
// through Resend instead of an SMTP relay:
//
//	d := batch.New(func() batch.Session {
//		return resend.NewSession(resend.Config{APIKey: os.Getenv("RESEND_API_KEY")})
//	}, renderer)
//
// The QR image is attached inline with its Content-ID, so the same HTML body works
// for both transports. Open fails with relay.ErrAuth when no API key is set.
package resend
