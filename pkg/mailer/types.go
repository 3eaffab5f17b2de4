package mailer

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// Fixed values shared by every check-in message.
const (
	// DefaultSubject is used when the template frontmatter carries no Subject.
	DefaultSubject = "QR 체크인 코드가 도착했습니다"

	// ContentID identifies the inline QR image; the HTML body references it as "cid:qr_code".
	ContentID = "qr_code"

	// DefaultImageName is the filename announced for the inline image part.
	DefaultImageName = "qr_code.png"
)

// Request describes one recipient of a check-in mail.
// Name and Team are interpolated into the HTML body without escaping
// unless the renderer was built with a field sanitizer.
type Request struct {
	To         string // Recipient address (required)
	Name       string // Display name
	Team       string // Group label, may be empty
	CheckInURL string // Check-in link (required)

	// QRImage is the base64 encoded image, optionally prefixed with
	// "data:image/<type>;base64,". Ignored when QRImageData is set.
	QRImage     string
	QRImageData []byte

	// Err is set when the request could not be decoded from its source.
	// Render fails such a request with ErrValidation.
	Err error
}

// Message is a fully rendered check-in mail ready for a session to send.
type Message struct {
	To        string // Recipient address
	Subject   string // Fixed subject line
	HTML      string // Rendered HTML body
	Image     []byte // Decoded inline image
	ImageName string // Filename of the inline image part
	ImageType string // MIME type sniffed from Image
	ContentID string // Content-ID of the inline image, without angle brackets
}

// DecodeImage decodes a base64 image, stripping an optional data URI prefix.
// Whitespace inside the payload is ignored and missing padding is tolerated.
func DecodeImage(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data URI has no payload", ErrInvalidImage)
		}
		s = payload
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}

	return data, nil
}

// sniffImageType reports the MIME type of an image, defaulting to PNG
// for payloads the sniffer does not recognise as an image.
func sniffImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "image/png"
	}
	return ct
}
