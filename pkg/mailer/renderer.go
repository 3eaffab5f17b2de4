package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates
var embedded embed.FS

// Default template paths inside the template filesystem.
const (
	DefaultTemplate = "checkin.md"
	DefaultLayout   = "layouts/base.html"
)

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	fsys     fs.FS
	template string
	layout   string
	sanitize func(string) string
}

// WithTemplateFS replaces the embedded templates with the given filesystem.
// It must contain the body template and the layout.
func WithTemplateFS(fsys fs.FS) RendererOption {
	return func(o *rendererOptions) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithTemplate sets the body template path.
// Default: "checkin.md"
func WithTemplate(name string) RendererOption {
	return func(o *rendererOptions) {
		if name != "" {
			o.template = name
		}
	}
}

// WithLayout sets the layout path.
// Default: "layouts/base.html"
func WithLayout(name string) RendererOption {
	return func(o *rendererOptions) {
		if name != "" {
			o.layout = name
		}
	}
}

// WithFieldSanitizer applies fn to the display name and group label before interpolation.
// Without it the fields are inserted into the markup verbatim.
func WithFieldSanitizer(fn func(string) string) RendererOption {
	return func(o *rendererOptions) {
		o.sanitize = fn
	}
}

// Renderer turns recipient requests into ready-to-send messages.
// It is safe for concurrent use: templates are parsed once in NewRenderer.
type Renderer struct {
	md       goldmark.Markdown
	body     *texttemplate.Template
	layout   *template.Template
	sanitize func(string) string

	subject   string
	imageName string
}

// NewRenderer parses the body template and layout.
// Frontmatter keys "Subject" and "ImageName" override DefaultSubject and DefaultImageName.
func NewRenderer(opts ...RendererOption) (*Renderer, error) {
	o := &rendererOptions{
		template: DefaultTemplate,
		layout:   DefaultLayout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fsys == nil {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		o.fsys = sub
	}

	content, err := fs.ReadFile(o.fsys, o.template)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, o.template, err)
	}
	parsed, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailed, o.template, err)
	}
	body, err := texttemplate.New(o.template).Option("missingkey=zero").Parse(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse template body: %v", ErrRenderFailed, err)
	}

	layoutContent, err := fs.ReadFile(o.fsys, o.layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, o.layout, err)
	}
	layout, err := template.New(o.layout).Parse(string(layoutContent))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse layout: %v", ErrRenderFailed, err)
	}

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(NewButtonExtension()),
			// Recipient fields may carry markup; it is passed through untouched.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		body:      body,
		layout:    layout,
		sanitize:  o.sanitize,
		subject:   parsed.String("Subject", DefaultSubject),
		imageName: parsed.String("ImageName", DefaultImageName),
	}, nil
}

// MustNewRenderer is like NewRenderer but panics on error.
// Use with the embedded templates, which are known to parse.
func MustNewRenderer(opts ...RendererOption) *Renderer {
	r, err := NewRenderer(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Subject returns the subject every rendered message carries.
func (r *Renderer) Subject() string {
	return r.subject
}

// Render validates req and builds its message.
// It performs no I/O; a validation failure matches ErrValidation.
func (r *Renderer) Render(req Request) (*Message, error) {
	if req.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, req.Err)
	}

	to := strings.TrimSpace(req.To)
	if to == "" {
		return nil, ErrNoRecipient
	}
	if strings.TrimSpace(req.CheckInURL) == "" {
		return nil, ErrNoCheckInURL
	}

	image := req.QRImageData
	if len(image) == 0 {
		var err error
		if image, err = DecodeImage(req.QRImage); err != nil {
			return nil, err
		}
	}

	name, team := req.Name, req.Team
	if r.sanitize != nil {
		name, team = r.sanitize(name), r.sanitize(team)
	}

	var source bytes.Buffer
	if err := r.body.Execute(&source, map[string]string{
		"Name":       name,
		"Team":       team,
		"CheckInURL": req.CheckInURL,
		"ContentID":  ContentID,
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to execute template: %v", ErrRenderFailed, err)
	}

	var content bytes.Buffer
	if err := r.md.Convert(source.Bytes(), &content); err != nil {
		return nil, fmt.Errorf("%w: failed to convert markdown: %v", ErrRenderFailed, err)
	}

	var page bytes.Buffer
	if err := r.layout.Execute(&page, map[string]any{
		"Content": template.HTML(content.String()),
		"Subject": r.subject,
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to execute layout: %v", ErrRenderFailed, err)
	}

	return &Message{
		To:        to,
		Subject:   r.subject,
		HTML:      page.String(),
		Image:     image,
		ImageName: r.imageName,
		ImageType: sniffImageType(image),
		ContentID: ContentID,
	}, nil
}
