package mailer

// Config holds renderer configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// EscapeFields strips markup from the display name and group label before
	// they are interpolated. Off by default: the fields are trusted and inserted as-is.
	EscapeFields bool `env:"QRMAIL_ESCAPE_FIELDS" envDefault:"false"`
}
