package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Template is a body template split into frontmatter metadata and markdown source.
type Template struct {
	Metadata map[string]any
	Body     string
}

// String returns a metadata value as a string, or fallback when it is absent or not a string.
func (t *Template) String(key, fallback string) string {
	if v, ok := t.Metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// ParseTemplate splits template content into YAML frontmatter and markdown body.
// Content without a leading "---" has no metadata.
func ParseTemplate(content []byte) (*Template, error) {
	delimiter := []byte("---")

	if !bytes.HasPrefix(content, delimiter) {
		return &Template{
			Metadata: make(map[string]any),
			Body:     string(content),
		}, nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, delimiter), "\r\n")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	end := bytes.Index(rest, delimiter)
	if end == -1 {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	front := rest[:end]
	body := rest[end+len(delimiter):]
	// One line break after the closing delimiter belongs to the delimiter line.
	switch {
	case bytes.HasPrefix(body, []byte("\r\n")):
		body = body[2:]
	case bytes.HasPrefix(body, []byte("\n")):
		body = body[1:]
	}

	metadata := make(map[string]any)
	if len(bytes.TrimSpace(front)) > 0 {
		if err := yaml.Unmarshal(front, &metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return &Template{
		Metadata: metadata,
		Body:     string(body),
	}, nil
}
