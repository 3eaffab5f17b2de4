package relay

import (
	"log/slog"
	"net"
	"strconv"
	"strings"
)

// Credentials identify the relay and the account a batch is sent with.
// They are built once at the process boundary and passed down explicitly.
type Credentials struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	Username string `validate:"required"`
	Password string `validate:"required"`
	From     string `validate:"required,mailbox"` // Bare address or "Name <address>"
}

// Addr returns host:port.
func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogValue implements slog.LogValuer. The password is never included.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("username", mask(c.Username)),
		slog.String("from", c.From),
	)
}

// String keeps credentials out of %v output.
func (c Credentials) String() string {
	return "relay.Credentials{" + c.Addr() + " user=" + mask(c.Username) + "}"
}

// mask keeps the first character of the local part and the domain.
func mask(s string) string {
	if s == "" {
		return ""
	}
	local, domain, found := strings.Cut(s, "@")
	masked := "***"
	if r := []rune(local); len(r) > 1 {
		masked = string(r[0]) + "***"
	}
	if found {
		return masked + "@" + domain
	}
	return masked
}
