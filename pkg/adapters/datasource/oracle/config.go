package oracle

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-logfmt/logfmt"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Config contains Oracle-specific connection options. Database holds the
// service name.
type Config struct {
	datasource.ConnectionConfig
	// Owner is the schema introspected. Defaults to UPPER(username).
	Owner string
}

// DefaultPort returns the default Oracle listener port.
func DefaultPort() int {
	return 1521
}

// FromMap creates a Config from a generic config map.
// "service_name" is accepted in place of "database".
func FromMap(config map[string]any) (*Config, error) {
	if _, ok := config["database"]; !ok {
		if service, ok := datasource.StringOption(config, "service_name"); ok {
			merged := make(map[string]any, len(config)+1)
			for k, v := range config {
				merged[k] = v
			}
			merged["database"] = service
			config = merged
		}
	}

	base, err := datasource.ParseConnectionConfig(config, DefaultPort())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConnectionConfig: base,
		Owner:            strings.ToUpper(base.Username),
	}
	if owner, ok := datasource.StringOption(config, "schema"); ok {
		cfg.Owner = strings.ToUpper(owner)
	}
	return cfg, nil
}

// ConnectString returns the EZConnect string host:port/service with a connect timeout.
func (c *Config) ConnectString(host string, timeoutSeconds int) string {
	return fmt.Sprintf("%s/%s?connect_timeout=%d",
		net.JoinHostPort(host, strconv.Itoa(c.Port)), c.Database, timeoutSeconds)
}

// DSN renders godror's logfmt connection parameters. logfmt quoting keeps
// passwords containing '/', '@' or quotes intact.
func (c *Config) DSN(host string, timeoutSeconds int) (string, error) {
	b, err := logfmt.MarshalKeyvals(
		"user", c.Username,
		"password", c.Password,
		"connectString", c.ConnectString(host, timeoutSeconds),
		"standaloneConnection", 1,
	)
	if err != nil {
		return "", fmt.Errorf("encode oracle dsn: %w", err)
	}
	return string(b), nil
}
