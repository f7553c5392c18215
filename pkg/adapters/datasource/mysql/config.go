package mysql

import (
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Config contains MySQL-specific connection options.
type Config struct {
	datasource.ConnectionConfig

	// TLS is passed to the driver's tls parameter: "false", "true", "skip-verify" or "preferred".
	TLS     string
	Charset string
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	base, err := datasource.ParseConnectionConfig(config, DefaultPort())
	if err != nil {
		return nil, err
	}

	cfg := &Config{ConnectionConfig: base, TLS: "false", Charset: "utf8mb4"}
	if tls, ok := datasource.StringOption(config, "tls"); ok {
		cfg.TLS = tls
	}
	if charset, ok := datasource.StringOption(config, "charset"); ok {
		cfg.Charset = charset
	}
	return cfg, nil
}

// DSN renders the driver DSN. The password is never escaped by hand;
// FormatDSN handles special characters.
func (c *Config) DSN(host string, timeout time.Duration) string {
	dc := gomysql.NewConfig()
	dc.User = c.Username
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Timeout = timeout
	dc.ReadTimeout = 0
	dc.TLSConfig = c.TLS
	dc.Params = map[string]string{"charset": c.Charset}
	return dc.FormatDSN()
}
