package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Adapter provides MySQL connectivity. It holds no open connection between calls.
type Adapter struct {
	config *Config
	opts   datasource.Options
	logger *zap.Logger
}

// NewAdapter creates a MySQL adapter.
func NewAdapter(cfg *Config, opts datasource.Options) *Adapter {
	return &Adapter{
		config: cfg,
		opts:   opts,
		logger: opts.NamedLogger("mysql"),
	}
}

func (a *Adapter) Type() string { return "mysql" }

// open returns a fresh single-connection handle. Callers must close it.
func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	dsn := a.config.DSN(a.opts.Host(a.config.Host), a.opts.Timeout())
	db, err := datasource.OpenSQL(ctx, "mysql", dsn, a.opts.Timeout())
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	return db, nil
}

// Connect opens a session. The caller must close it.
func (a *Adapter) Connect(ctx context.Context) (datasource.Connection, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return &datasource.SQLConnection{DB: db}, nil
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
	db, err := a.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
	`, a.config.Database).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}

// QuoteIdentifier wraps a name in backticks, doubling embedded backticks.
func (a *Adapter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Ensure Adapter implements Connector at compile time.
var _ datasource.Connector = (*Adapter)(nil)
