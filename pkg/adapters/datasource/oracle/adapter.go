package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/godror/godror" // Oracle driver (requires Oracle Instant Client at runtime)
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Adapter provides Oracle connectivity through godror.
type Adapter struct {
	config *Config
	opts   datasource.Options
	logger *zap.Logger
}

// NewAdapter creates an Oracle adapter.
func NewAdapter(cfg *Config, opts datasource.Options) *Adapter {
	return &Adapter{
		config: cfg,
		opts:   opts,
		logger: opts.NamedLogger("oracle"),
	}
}

func (a *Adapter) Type() string { return "oracle" }

// open returns a fresh single-connection handle. Callers must close it.
func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	dsn, err := a.config.DSN(a.opts.Host(a.config.Host), a.opts.TimeoutSeconds())
	if err != nil {
		return nil, err
	}
	db, err := datasource.OpenSQL(ctx, "godror", dsn, a.opts.Timeout())
	if err != nil {
		return nil, fmt.Errorf("connect to oracle: %w", err)
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

// TableCount returns the number of tables owned by the configured owner.
func (a *Adapter) TableCount(ctx context.Context) (int, error) {
	db, err := a.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM all_tables WHERE owner = :1`, a.config.Owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}

// QuoteIdentifier wraps a name in double quotes, doubling embedded quotes.
// Quoted Oracle identifiers are case-sensitive.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualifiedTableName returns "OWNER"."TABLE".
func (a *Adapter) qualifiedTableName(table string) string {
	return a.QuoteIdentifier(a.config.Owner) + "." + a.QuoteIdentifier(table)
}

// Ensure Adapter implements Connector at compile time.
var _ datasource.Connector = (*Adapter)(nil)
