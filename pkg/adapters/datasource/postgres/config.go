package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Config contains PostgreSQL-specific connection options. Kingbase uses the same wire protocol.
type Config struct {
	datasource.ConnectionConfig
	SSLMode string // "disable", "prefer", "require", "verify-ca", "verify-full"
	Schema  string
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "prefer"
}

// DefaultSchema returns the schema introspected when none is configured.
func DefaultSchema() string {
	return "public"
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	base, err := datasource.ParseConnectionConfig(config, DefaultPort())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConnectionConfig: base,
		SSLMode:          DefaultSSLMode(),
		Schema:           DefaultSchema(),
	}
	if sslMode, ok := datasource.StringOption(config, "ssl_mode"); ok {
		cfg.SSLMode = sslMode
	}
	if schema, ok := datasource.StringOption(config, "schema"); ok {
		cfg.Schema = schema
	}
	return cfg, nil
}

// ConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are escaped so passwords containing @, /, # or ?
// do not break URL parsing.
func (c *Config) ConnectionString(host string, timeoutSeconds int) string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(timeoutSeconds))

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *Config) String() string {
	return fmt.Sprintf("postgres %s:%d/%s", c.Host, c.Port, c.Database)
}
