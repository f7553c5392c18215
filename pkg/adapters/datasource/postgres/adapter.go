package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Adapter provides PostgreSQL and Kingbase connectivity. Every call opens a
// single pgx connection and closes it before returning.
type Adapter struct {
	config *Config
	opts   datasource.Options
	logger *zap.Logger
}

// NewAdapter creates a PostgreSQL adapter.
func NewAdapter(cfg *Config, opts datasource.Options) *Adapter {
	return &Adapter{
		config: cfg,
		opts:   opts,
		logger: opts.NamedLogger("postgres"),
	}
}

func (a *Adapter) Type() string { return "postgresql" }

// open dials a fresh connection. Callers must close it.
func (a *Adapter) open(ctx context.Context) (*pgx.Conn, error) {
	connStr := a.config.ConnectionString(a.opts.Host(a.config.Host), a.opts.TimeoutSeconds())

	connCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout())
	defer cancel()

	conn, err := pgx.Connect(connCtx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return conn, nil
}

type pgxConnection struct {
	conn *pgx.Conn
}

func (c *pgxConnection) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

func (c *pgxConnection) Close() error { return c.conn.Close(context.Background()) }

// Connect opens a session. The caller must close it.
func (a *Adapter) Connect(ctx context.Context) (datasource.Connection, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConnection{conn: conn}, nil
}

// TestConnection connects and counts tables.
func (a *Adapter) TestConnection(ctx context.Context) datasource.TestResult {
	res := datasource.TestWith(ctx, a)
	if !res.Success {
		a.logger.Warn("Connection test failed",
			zap.String("host", a.config.Host),
			zap.Int("port", a.config.Port),
			zap.String("error", res.Error))
	}
	return res
}

// TableCount returns the number of base tables in the configured schema.
func (a *Adapter) TableCount(ctx context.Context) (int, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close(context.Background())

	var count int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
	`, a.config.Schema).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}

// QuoteIdentifier quotes a name with pgx's identifier sanitizer.
func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// qualifiedTableName returns "schema"."table".
func (a *Adapter) qualifiedTableName(table string) string {
	return pgx.Identifier{a.config.Schema, table}.Sanitize()
}

// Ensure Adapter implements Connector at compile time.
var _ datasource.Connector = (*Adapter)(nil)
