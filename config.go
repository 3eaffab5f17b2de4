package qrmail

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/joho/godotenv"
	"github.com/wneessen/go-mail"

	"github.com/dmitrymomot/qrmail/pkg/logger"
	"github.com/dmitrymomot/qrmail/pkg/mailer"
	"github.com/dmitrymomot/qrmail/pkg/mailer/resend"
	"github.com/dmitrymomot/qrmail/pkg/relay"
)

// Supported values of Config.Provider.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// Config is the process configuration read from the environment.
// The SMTP fields are the fallback for anything the payload leaves out.
type Config struct {
	SMTPServer   string `env:"SMTP_SERVER" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	FromEmail    string `env:"SMTP_FROM_EMAIL"`

	Provider   string `env:"MAIL_PROVIDER" envDefault:"smtp"`
	Partitions int    `env:"QRMAIL_PARTITIONS" envDefault:"1"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"33554432"`

	Relay  relay.Config
	Mailer mailer.Config
	Resend resend.Config
	Log    logger.Config
	Sentry logger.SentryConfig
}

// LoadConfig reads a .env file when one exists and parses the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: load .env: %v", ErrConfig, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// Envelope carries the SMTP fields a payload may supply inline.
// Empty fields fall back to Config.
type Envelope struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
}

// Credentials merges the envelope over the config and validates the result.
func (c Config) Credentials(e Envelope) (relay.Credentials, error) {
	creds := relay.Credentials{
		Host:     first(e.Server, c.SMTPServer),
		Port:     e.Port,
		Username: first(e.Username, c.SMTPUsername),
		Password: first(e.Password, c.SMTPPassword),
		From:     first(e.From, c.FromEmail),
	}
	if creds.Port == 0 {
		creds.Port = c.SMTPPort
	}

	var err error
	if c.Provider == ProviderResend {
		// The API key authenticates; only the sender address is needed.
		err = credentialValidator.StructPartial(creds, "From")
	} else {
		err = credentialValidator.Struct(creds)
	}
	if err != nil {
		return relay.Credentials{}, fmt.Errorf("%w: %s", ErrConfig, describe(err))
	}
	return creds, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	credentialValidator  *validator.Validate
	credentialTranslator ut.Translator
)

// Names reported for invalid credential fields, matching the payload keys.
var credentialFieldNames = map[string]string{
	"Host":     "smtp_server",
	"Port":     "smtp_port",
	"Username": "smtp_username",
	"Password": "smtp_password",
	"From":     "from_email",
}

func init() {
	credentialValidator = validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	credentialTranslator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(credentialValidator, credentialTranslator)

	_ = credentialValidator.RegisterValidation("mailbox", validateMailbox)
	_ = credentialValidator.RegisterTranslation("mailbox", credentialTranslator,
		func(ut ut.Translator) error {
			return ut.Add("mailbox", "{0} must be an e-mail address, optionally with a display name", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("mailbox", fe.Field())
			return msg
		},
	)

	credentialValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name, ok := credentialFieldNames[fld.Name]; ok {
			return name
		}
		return fld.Name
	})
}

// validateMailbox accepts what the message From header accepts,
// so "행사팀 <noreply@example.com>" is as valid as the bare address.
func validateMailbox(fl validator.FieldLevel) bool {
	return mail.NewMsg().From(fl.Field().String()) == nil
}

// describe joins translated field errors into one line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(credentialTranslator))
	}
	return strings.Join(msgs, "; ")
}
