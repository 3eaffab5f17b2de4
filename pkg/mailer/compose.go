package mailer

import (
	"bytes"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Compose assembles the MIME message: an HTML body with the QR image
// embedded as a related inline part addressed by ContentID.
// The returned value is written to the relay with WriteTo.
func (m *Message) Compose(from string) (*mail.Msg, error) {
	if m == nil || m.To == "" {
		return nil, ErrNoRecipient
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", ErrComposeFailed, from, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %v", ErrComposeFailed, m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)

	if len(m.Image) > 0 {
		name := m.ImageName
		if name == "" {
			name = DefaultImageName
		}
		opts := []mail.FileOption{mail.WithFileContentID(m.ContentID)}
		if m.ImageType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(m.ImageType)))
		}
		if err := msg.EmbedReader(name, bytes.NewReader(m.Image), opts...); err != nil {
			return nil, fmt.Errorf("%w: inline image: %v", ErrComposeFailed, err)
		}
	}

	return msg, nil
}
