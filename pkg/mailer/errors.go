package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every error caused by a bad or missing request field.
	// A validation failure is local to one recipient.
	ErrValidation = errors.New("invalid recipient request")

	// ErrNoRecipient indicates no recipient address was specified.
	ErrNoRecipient = fmt.Errorf("%w: recipient address is required", ErrValidation)

	// ErrNoCheckInURL indicates the check-in URL is missing.
	ErrNoCheckInURL = fmt.Errorf("%w: check-in URL is required", ErrValidation)

	// ErrNoImage indicates the QR image is missing or empty.
	ErrNoImage = fmt.Errorf("%w: QR image is required", ErrValidation)

	// ErrInvalidImage indicates the QR image is not valid base64.
	ErrInvalidImage = fmt.Errorf("%w: QR image is not valid base64", ErrValidation)

	// ErrTemplateNotFound indicates the body template was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrLayoutNotFound indicates the layout file was not found.
	ErrLayoutNotFound = errors.New("layout not found")

	// ErrRenderFailed indicates template rendering failed.
	ErrRenderFailed = errors.New("failed to render template")

	// ErrInvalidFrontmatter indicates invalid YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")

	// ErrComposeFailed indicates the MIME message could not be assembled.
	ErrComposeFailed = errors.New("failed to compose message")
)
