package postgres

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "pg.local",
		"port":     float64(5433),
		"username": "analyst",
		"password": "s3cret",
		"database": "warehouse",
		"ssl_mode": "require",
		"schema":   "sales",
	})
	require.NoError(t, err)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, "sales", cfg.Schema)

	cfg, err = FromMap(map[string]any{"host": "h", "user": "u", "name": "d"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, DefaultSSLMode(), cfg.SSLMode)
	assert.Equal(t, "public", cfg.Schema)
	assert.Equal(t, "d", cfg.Database)
}

func TestConnectionString_EscapesCredentials(t *testing.T) {
	cfg := &Config{
		ConnectionConfig: datasource.ConnectionConfig{
			Host: "pg.local", Port: 5432, Database: "warehouse",
			Username: "user@corp", Password: "p@ss/w#rd?",
		},
		SSLMode: "disable",
	}

	parsed, err := pgx.ParseConfig(cfg.ConnectionString("pg.local", 7))
	require.NoError(t, err)
	assert.Equal(t, "user@corp", parsed.User)
	assert.Equal(t, "p@ss/w#rd?", parsed.Password)
	assert.Equal(t, "pg.local", parsed.Host)
	assert.Equal(t, uint16(5432), parsed.Port)
	assert.Equal(t, "warehouse", parsed.Database)
	assert.Equal(t, 7*time.Second, parsed.ConnectTimeout)
}

func TestQuoteIdentifier(t *testing.T) {
	a := NewAdapter(&Config{Schema: "public"}, datasource.Options{})
	assert.Equal(t, `"orders"`, a.QuoteIdentifier("orders"))
	assert.Equal(t, `"a""b"`, a.QuoteIdentifier(`a"b`))
	assert.Equal(t, `"public"."orders"`, a.qualifiedTableName("orders"))
}

func TestRegistered(t *testing.T) {
	factory := datasource.NewConnectorFactory(datasource.Options{})
	for _, name := range []string{"postgresql", "postgres", "Kingbase", "kingbasees"} {
		conn, err := factory.Create(name, "h", 5432, "d", "u", "p")
		require.NoError(t, err, name)
		assert.Equal(t, "postgresql", conn.Type())
	}
}

func TestNormalizePgValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", normalizePgValue(id))

	var num pgtype.Numeric
	require.NoError(t, num.Scan("12.50"))
	assert.Equal(t, "12.50", normalizePgValue(num))

	assert.Nil(t, normalizePgValue(pgtype.Numeric{}))
	assert.Equal(t, "abc", normalizePgValue([]byte("abc")))
	assert.Equal(t, int64(3), normalizePgValue(int64(3)))
}

func TestTestConnection_UnreachableHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	timeout := 2 * time.Second
	cfg, err := FromMap(map[string]any{"host": "127.0.0.1", "port": port, "username": "analyst", "password": "secret", "database": "warehouse", "ssl_mode": "disable"})
	require.NoError(t, err)
	a := NewAdapter(cfg, datasource.Options{ConnectTimeout: timeout, Logger: zap.NewNop()})

	start := time.Now()
	res := a.TestConnection(context.Background())

	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.False(t, strings.Contains(res.Error, "secret"))
	assert.Less(t, time.Since(start), timeout+time.Second)
}
