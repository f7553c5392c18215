package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/database"
)

// PostgresImage is the stock image used for integration tests.
const PostgresImage = "postgres:16-alpine"

const (
	testUser     = "wenshu"
	testPassword = "test_password"
	testDatabase = "test_data"
	engineDBName = "wenshu_engine_test"
)

// TestDB is a running PostgreSQL container plus a pool on its test_data database.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

// shared lazily builds one value per test binary and hands it to every caller.
type shared[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (s *shared[T]) get(t *testing.T, what string, build func() (T, error)) T {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	s.once.Do(func() { s.val, s.err = build() })
	if s.err != nil {
		t.Fatalf("Failed to set up %s: %v", what, s.err)
	}
	return s.val
}

var (
	testDBs   shared[*TestDB]
	engineDBs shared[*EngineDB]
)

// GetTestDB returns the PostgreSQL container shared by every integration test in
// the binary, with test_data seeded with a small shop schema.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()
	return testDBs.get(t, "test database", setupTestDB)
}

// shopSchema is loaded into test_data once the container is up.
const shopSchema = `
CREATE TABLE IF NOT EXISTS categories (
    id   SERIAL PRIMARY KEY,
    name TEXT NOT NULL
);
COMMENT ON TABLE categories IS '商品分类';

CREATE TABLE IF NOT EXISTS products (
    id          SERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    category_id INTEGER REFERENCES categories (id),
    price       NUMERIC(10, 2) NOT NULL DEFAULT 0
);
COMMENT ON TABLE products IS '商品';
COMMENT ON COLUMN products.price IS '单价';
CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id);

CREATE OR REPLACE VIEW product_names AS SELECT id, name FROM products;

INSERT INTO categories (name) SELECT '图书' WHERE NOT EXISTS (SELECT 1 FROM categories);
INSERT INTO products (name, category_id, price)
SELECT v.name, 1, v.price FROM (VALUES ('Go 程序设计', 89.00), ('数据库系统', 120.50)) AS v(name, price)
WHERE NOT EXISTS (SELECT 1 FROM products);
`

func (db *TestDB) connString(database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func setupTestDB() (*TestDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
			},
			// postgres restarts once after running init scripts
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	db := &TestDB{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		Database:  testDatabase,
		User:      testUser,
		Password:  testPassword,
	}
	db.ConnStr = db.connString(testDatabase)

	if db.Pool, err = pgxpool.New(ctx, db.ConnStr); err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := db.Pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("test database not reachable: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, shopSchema); err != nil {
		return nil, fmt.Errorf("failed to load shop schema: %w", err)
	}
	return db, nil
}

// EngineDB is a migrated engine store for repository and service tests.
type EngineDB struct {
	DB      *database.DB
	ConnStr string
}

// GetEngineDB returns an engine store database, created inside the shared
// container with every migration applied.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()
	testDB := GetTestDB(t)
	return engineDBs.get(t, "engine database", func() (*EngineDB, error) {
		return setupEngineDB(testDB)
	})
}

// MigrationsPath returns the repository's migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func setupEngineDB(testDB *TestDB) (*EngineDB, error) {
	ctx := context.Background()

	if _, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+engineDBName); err != nil {
		return nil, fmt.Errorf("failed to create engine database: %w", err)
	}
	connStr := testDB.connString(engineDBName)

	// golang-migrate wants database/sql
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, MigrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 5})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}
	return &EngineDB{DB: db, ConnStr: connStr}, nil
}
