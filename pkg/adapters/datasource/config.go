package datasource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultConnectTimeout applies when Options.ConnectTimeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// Options are factory-wide settings passed to every adapter constructor.
type Options struct {
	ConnectTimeout time.Duration
	Logger         *zap.Logger
	// ResolveHost rewrites the configured host before dialing. Nil means unchanged.
	ResolveHost func(host string) string
}

// Timeout returns the connect timeout, falling back to DefaultConnectTimeout.
func (o Options) Timeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

// TimeoutSeconds returns the connect timeout in whole seconds, at least 1.
func (o Options) TimeoutSeconds() int {
	s := int(o.Timeout() / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// Host applies ResolveHost.
func (o Options) Host(host string) string {
	if o.ResolveHost == nil {
		return host
	}
	return o.ResolveHost(host)
}

// NamedLogger returns a named child of Logger, or a no-op logger.
func (o Options) NamedLogger(name string) *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger.Named(name)
}

// ConnectionConfig holds the fields every engine needs.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// ParseConnectionConfig reads the shared fields from a generic config map.
// "username" and "user" are both accepted, as are "database" and "name".
// JSON numbers arrive as float64; ports given as int or numeric string are accepted too.
func ParseConnectionConfig(config map[string]any, defaultPort int) (ConnectionConfig, error) {
	cfg := ConnectionConfig{Port: defaultPort}

	host, ok := config["host"].(string)
	if !ok || strings.TrimSpace(host) == "" {
		return cfg, fmt.Errorf("host is required")
	}
	cfg.Host = strings.TrimSpace(host)

	if port, ok := IntOption(config, "port"); ok && port > 0 {
		cfg.Port = port
	}

	if user, ok := config["username"].(string); ok && user != "" {
		cfg.Username = user
	} else if user, ok := config["user"].(string); ok && user != "" {
		cfg.Username = user
	} else {
		return cfg, fmt.Errorf("username is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	} else if name, ok := config["name"].(string); ok && name != "" {
		cfg.Database = name
	} else {
		return cfg, fmt.Errorf("database is required")
	}

	return cfg, nil
}

// StringOption returns config[key] when it is a non-empty string.
func StringOption(config map[string]any, key string) (string, bool) {
	s, ok := config[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// IntOption returns config[key] as an int from float64, int, int64 or a numeric string.
func IntOption(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// BoolOption returns config[key] as a bool from a bool or "true"/"false" string.
func BoolOption(config map[string]any, key string) (bool, bool) {
	switch v := config[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// ToMap renders the shared fields plus engine options as a config map for FromMap.
func (c ConnectionConfig) ToMap(options map[string]any) map[string]any {
	m := make(map[string]any, len(options)+5)
	for k, v := range options {
		m[k] = v
	}
	m["host"] = c.Host
	m["port"] = c.Port
	m["database"] = c.Database
	m["username"] = c.Username
	m["password"] = c.Password
	return m
}
