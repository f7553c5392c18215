package mssql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Config contains SQL Server-specific connection options. Only SQL
// authentication (username/password) is supported.
type Config struct {
	datasource.ConnectionConfig

	// Encrypt is passed through as the driver's encrypt parameter:
	// "true", "false", "strict" or "disable".
	Encrypt                string
	TrustServerCertificate bool
	// Schema is the default schema for unqualified table names.
	Schema string
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultSchema returns the schema SQL Server uses for unqualified names.
func DefaultSchema() string {
	return "dbo"
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	base, err := datasource.ParseConnectionConfig(config, DefaultPort())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConnectionConfig: base,
		Encrypt:          "false",
		Schema:           DefaultSchema(),
	}

	if encrypt, ok := datasource.BoolOption(config, "encrypt"); ok {
		cfg.Encrypt = strconv.FormatBool(encrypt)
	} else if encrypt, ok := datasource.StringOption(config, "encrypt"); ok {
		switch encrypt {
		case "true", "false", "strict", "disable":
			cfg.Encrypt = encrypt
		default:
			return nil, fmt.Errorf("invalid encrypt value: %s (must be true, false, strict or disable)", encrypt)
		}
	}

	if trust, ok := datasource.BoolOption(config, "trust_server_certificate"); ok {
		cfg.TrustServerCertificate = trust
	}
	if schema, ok := datasource.StringOption(config, "schema"); ok {
		cfg.Schema = schema
	}

	return cfg, nil
}

// ConnectionString builds a sqlserver:// URL for SQL authentication.
func (c *Config) ConnectionString(host string, timeoutSeconds int) string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", c.Encrypt)
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	query.Add("connection timeout", strconv.Itoa(timeoutSeconds))
	query.Add("dial timeout", strconv.Itoa(timeoutSeconds))

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(c.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
