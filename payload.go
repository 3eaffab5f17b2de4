package qrmail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrymomot/qrmail/pkg/mailer"
)

// Payload is a parsed input document.
type Payload struct {
	// Batch is set when the document carries an "emails" list.
	Batch    bool
	Envelope Envelope
	Requests []mailer.Request
}

// Accepted keys, snake_case first.
var (
	keysServer   = []string{"smtp_server", "smtpServer"}
	keysPort     = []string{"smtp_port", "smtpPort"}
	keysUsername = []string{"smtp_username", "smtpUsername"}
	keysPassword = []string{"smtp_password", "smtpPassword"}
	keysFrom     = []string{"from_email", "fromEmail"}
	keysEmails   = []string{"emails"}

	keysTo    = []string{"to_email", "toEmail", "to"}
	keysName  = []string{"name", "to_name", "toName"}
	keysTeam  = []string{"team"}
	keysURL   = []string{"check_in_url", "checkInUrl", "checkInURL"}
	keysImage = []string{"qr_image_base64", "qrImageBase64"}
)

type object map[string]json.RawMessage

// Parse reads one JSON document.
//
// A document with an "emails" list is a batch; recipients inside it are validated
// one by one when they are sent, including items that could not be decoded. Any other document is a single recipient whose
// required fields are checked here, before anything touches the network.
func Parse(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrInvalidPayload, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPayload)
	}

	var doc object
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p := &Payload{}
	if p.Envelope, err = doc.envelope(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if raw, key, ok := doc.lookup(keysEmails); ok {
		p.Batch = true
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %s must be a list of objects", ErrInvalidPayload, key)
		}
		p.Requests = make([]mailer.Request, 0, len(items))
		for i, item := range items {
			p.Requests = append(p.Requests, batchRequest(item, fmt.Sprintf("%s[%d]", key, i)))
		}
		return p, nil
	}

	req, err := doc.request()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := checkRequired(&req); err != nil {
		return nil, err
	}
	p.Requests = []mailer.Request{req}
	return p, nil
}

// batchRequest decodes one batch item. A malformed item does not reject the
// document: the decode error travels with the request and fails only that recipient.
func batchRequest(raw json.RawMessage, path string) mailer.Request {
	var item object
	if err := json.Unmarshal(raw, &item); err != nil || item == nil {
		return mailer.Request{Err: fmt.Errorf("%s must be an object", path)}
	}

	req, err := item.request()
	if err != nil {
		to, _ := item.str(keysTo)
		return mailer.Request{To: to, Err: fmt.Errorf("%s: %v", path, err)}
	}
	return req
}

// checkRequired fails fast on a single recipient and decodes its image once.
func checkRequired(req *mailer.Request) error {
	switch {
	case req.To == "":
		return fmt.Errorf("%w: missing required field: to_email", ErrInvalidPayload)
	case req.CheckInURL == "":
		return fmt.Errorf("%w: missing required field: check_in_url", ErrInvalidPayload)
	case req.QRImage == "":
		return fmt.Errorf("%w: missing required field: qr_image_base64", ErrInvalidPayload)
	}

	img, err := mailer.DecodeImage(req.QRImage)
	if err != nil {
		return fmt.Errorf("%w: qr_image_base64: %v", ErrInvalidPayload, err)
	}
	req.QRImageData = img
	return nil
}

func (o object) envelope() (Envelope, error) {
	var (
		e   Envelope
		err error
	)
	if e.Server, err = o.str(keysServer); err != nil {
		return e, err
	}
	if e.Port, err = o.port(); err != nil {
		return e, err
	}
	if e.Username, err = o.str(keysUsername); err != nil {
		return e, err
	}
	if e.Password, err = o.str(keysPassword); err != nil {
		return e, err
	}
	if e.From, err = o.str(keysFrom); err != nil {
		return e, err
	}
	return e, nil
}

func (o object) request() (mailer.Request, error) {
	var (
		req mailer.Request
		err error
	)
	if req.To, err = o.str(keysTo); err != nil {
		return req, err
	}
	if req.Name, err = o.str(keysName); err != nil {
		return req, err
	}
	if req.Team, err = o.str(keysTeam); err != nil {
		return req, err
	}
	if req.CheckInURL, err = o.str(keysURL); err != nil {
		return req, err
	}
	if req.QRImage, err = o.str(keysImage); err != nil {
		return req, err
	}
	return req, nil
}

// lookup returns the first present, non-null key.
func (o object) lookup(keys []string) (json.RawMessage, string, bool) {
	for _, k := range keys {
		raw, ok := o[k]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		return raw, k, true
	}
	return nil, "", false
}

func (o object) str(keys []string) (string, error) {
	raw, key, ok := o.lookup(keys)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// port accepts 587 as well as "587".
func (o object) port() (int, error) {
	raw, key, ok := o.lookup(keysPort)
	if !ok {
		return 0, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%s: %v", key, err)
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < 1 || n > 65535 {
			return 0, fmt.Errorf("%s out of range: %v", key, n)
		}
		return int(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, nil
		}
		p, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || p < 1 || p > 65535 {
			return 0, fmt.Errorf("%s is not a valid port: %q", key, n)
		}
		return p, nil
	default:
		return 0, fmt.Errorf("%s must be a number or a string", key)
	}
}
