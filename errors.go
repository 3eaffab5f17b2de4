package qrmail

import "errors"

var (
	// ErrConfig is matched by every error caused by missing or invalid configuration,
	// including credentials that resolve to nothing.
	ErrConfig = errors.New("qrmail: invalid configuration")

	// ErrInvalidPayload is matched when the input document cannot be parsed.
	ErrInvalidPayload = errors.New("qrmail: invalid payload")
)
