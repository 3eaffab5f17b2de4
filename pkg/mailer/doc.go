// Package mailer renders QR check-in mails.
//
// A Request carries one recipient's fields and the QR image. The Renderer validates it
// and produces a Message: fixed subject, HTML body and the decoded inline image.
// Rendering is pure; delivery belongs to the session packages (relay, resend).
//
// # Usage
//
//	r, err := mailer.NewRenderer()
//	if err != nil {
//		return err
//	}
//
//	msg, err := r.Render(mailer.Request{
//		To:         "alice@example.com",
//		Name:       "Alice",
//		Team:       "Blue",
//		CheckInURL: "https://example.com/check-in?id=42",
//		QRImage:    "data:image/png;base64,iVBORw0KGgo...",
//	})
//	if errors.Is(err, mailer.ErrValidation) {
//		// bad input for this recipient only
//	}
//
//	mime, err := msg.Compose("events@example.com")
//
// # Templates
//
// The body is a markdown template with optional YAML frontmatter, rendered to HTML
// with goldmark and wrapped into an HTML layout:
//
//	---
//	Subject: QR 체크인 코드가 도착했습니다
//	---
//
//	# 안녕하세요, {{.Name}}님!
//
//	![QR Code](cid:{{.ContentID}})
//
//	[!button|체크인하기]({{.CheckInURL}})
//
// Available fields are Name, Team, CheckInURL and ContentID. The embedded templates can
// be replaced with WithTemplateFS.
//
// # Escaping
//
// Name and Team are NOT escaped. They are trusted internal fields and are interpolated
// into the markup verbatim, raw HTML included. Pass WithFieldSanitizer (for example
// sanitizer.StripTags) to strip markup from them instead.
//
// # Errors
//
//   - ErrValidation: matched by every per-recipient input error
//   - ErrNoRecipient, ErrNoCheckInURL, ErrNoImage, ErrInvalidImage: specific input errors
//   - ErrTemplateNotFound, ErrLayoutNotFound: template files missing
//   - ErrRenderFailed, ErrInvalidFrontmatter: template errors
//   - ErrComposeFailed: MIME assembly failed
package mailer
