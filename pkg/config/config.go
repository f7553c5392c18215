package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// DefaultConfigFile is read from the working directory when present.
	DefaultConfigFile = "config.yaml"
	// ConfigFileEnv overrides DefaultConfigFile.
	ConfigFileEnv = "WENSHU_CONFIG"
)

// Config holds all configuration for wenshu-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Engine store (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Credential vault keys
	Vault VaultConfig `yaml:"vault"`

	// Target database access
	Datasource DatasourceConfig `yaml:"datasource"`

	// LLM gateway defaults
	LLM LLMConfig `yaml:"llm"`

	// MCP surface
	MCP MCPConfig `yaml:"mcp"`

	// SeedFile optionally registers datasources and models at startup.
	SeedFile string `yaml:"seed_file" env:"SEED_FILE" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration for the engine's own store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"wenshu"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"wenshu_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// VaultConfig holds the credential encryption keys.
type VaultConfig struct {
	// EncryptionKey is the primary key. Base64 32-byte key or passphrase.
	// Generate with: openssl rand -base64 32
	EncryptionKey string `yaml:"-" env:"ENCRYPTION_KEY"` // Secret - not in YAML
	// FallbackKey is tried when the primary key cannot open a token.
	// Empty means the compiled-in default.
	FallbackKey string `yaml:"fallback_key" env:"VAULT_FALLBACK_KEY" env-default:""`
	// DefaultCredential is returned when no key can open a stored secret.
	DefaultCredential string `yaml:"-" env:"DB_PASSWORD" env-default:"admin123456!"` // Secret - not in YAML
}

// DatasourceConfig holds settings for connecting to target databases.
type DatasourceConfig struct {
	// ConnectTimeoutSeconds bounds every connector connection attempt.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"DATASOURCE_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
	// SampleLimit is the rows-per-table bound for bulk sample discovery.
	SampleLimit int `yaml:"sample_limit" env:"DATASOURCE_SAMPLE_LIMIT" env-default:"3"`
	// MaxQueryRows is the default row cap for read-only query execution.
	MaxQueryRows int `yaml:"max_query_rows" env:"DATASOURCE_MAX_QUERY_ROWS" env-default:"100"`
	// WorkerPoolSize bounds concurrent connector calls during schema and sample discovery.
	WorkerPoolSize int `yaml:"worker_pool_size" env:"DATASOURCE_WORKER_POOL_SIZE" env-default:"4"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *DatasourceConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// LLMConfig holds LLM gateway defaults.
type LLMConfig struct {
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds" env:"LLM_HTTP_TIMEOUT_SECONDS" env-default:"60"`
	DefaultBaseURL     string `yaml:"default_base_url" env:"LLM_DEFAULT_BASE_URL" env-default:"https://api.deepseek.com"`
}

// HTTPTimeout returns the per-request LLM timeout as a duration.
func (c *LLMConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// MCPConfig controls the MCP server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml, or from the file named by
// WENSHU_CONFIG, with environment variable overrides. Without a file the
// environment alone is used. Secrets (PGPASSWORD, ENCRYPTION_KEY, DB_PASSWORD)
// are yaml:"-" and only ever come from the environment.
func Load(version string) (*Config, error) {
	path := os.Getenv(ConfigFileEnv)
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path, version)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.defaultBaseURL()
	}
	return cfg, nil
}

func (c *Config) defaultBaseURL() string {
	scheme := "http"
	if c.TLSCertPath != "" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: "localhost:" + c.Port}).String()
}

// validate reports every bad setting at once.
func (c *Config) validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("datasource.connect_timeout_seconds", c.Datasource.ConnectTimeoutSeconds)
	positive("datasource.sample_limit", c.Datasource.SampleLimit)
	positive("datasource.max_query_rows", c.Datasource.MaxQueryRows)
	positive("datasource.worker_pool_size", c.Datasource.WorkerPoolSize)
	positive("llm.http_timeout_seconds", c.LLM.HTTPTimeoutSeconds)

	if err := c.validateTLS(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateTLS requires cert and key together, and both files present.
// Readability is left to tls.LoadX509KeyPair at startup.
func (c *Config) validateTLS() error {
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return errors.New("tls_cert_path and tls_key_path must be set together")
	}
	if c.TLSCertPath == "" {
		return nil
	}
	for _, p := range []string{c.TLSCertPath, c.TLSKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("TLS file %s: %w", p, err)
		}
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
