package datasource

import (
	"context"
	"sync"
)

// MockConnector is a Connector for tests. Nil function fields return zero values.
type MockConnector struct {
	TypeName string

	TableCountFunc     func(ctx context.Context) (int, error)
	ListTablesFunc     func(ctx context.Context) ([]TableInfo, error)
	TableSchemaFunc    func(ctx context.Context, table string) ([]ColumnInfo, error)
	ForeignKeysFunc    func(ctx context.Context, table string) ([]ForeignKey, error)
	IndexesFunc        func(ctx context.Context, table string) ([]Index, error)
	ListViewsFunc      func(ctx context.Context) ([]string, error)
	SampleRowsFunc     func(ctx context.Context, table string, limit int) ([]map[string]any, error)
	ExecuteQueryFunc   func(ctx context.Context, sqlQuery string, maxRows int) (*QueryResult, error)
	TestConnectionFunc func(ctx context.Context) TestResult

	mu                  sync.Mutex
	ExecuteQueryCalls   int
	SampleRowsCalls     int
	TestConnectionCalls int
	LastQuery           string
}

var _ Connector = (*MockConnector)(nil)

func (m *MockConnector) Type() string {
	if m.TypeName == "" {
		return "mock"
	}
	return m.TypeName
}

func (m *MockConnector) Connect(ctx context.Context) (Connection, error) {
	return mockConnection{}, nil
}

func (m *MockConnector) TableCount(ctx context.Context) (int, error) {
	if m.TableCountFunc != nil {
		return m.TableCountFunc(ctx)
	}
	return 0, nil
}

func (m *MockConnector) ListTables(ctx context.Context) ([]TableInfo, error) {
	if m.ListTablesFunc != nil {
		return m.ListTablesFunc(ctx)
	}
	return nil, nil
}

func (m *MockConnector) TableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	if m.TableSchemaFunc != nil {
		return m.TableSchemaFunc(ctx, table)
	}
	return nil, nil
}

func (m *MockConnector) ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	if m.ForeignKeysFunc != nil {
		return m.ForeignKeysFunc(ctx, table)
	}
	return nil, nil
}

func (m *MockConnector) Indexes(ctx context.Context, table string) ([]Index, error) {
	if m.IndexesFunc != nil {
		return m.IndexesFunc(ctx, table)
	}
	return nil, nil
}

func (m *MockConnector) ListViews(ctx context.Context) ([]string, error) {
	if m.ListViewsFunc != nil {
		return m.ListViewsFunc(ctx)
	}
	return nil, nil
}

func (m *MockConnector) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	m.SampleRowsCalls++
	m.mu.Unlock()
	if m.SampleRowsFunc != nil {
		return m.SampleRowsFunc(ctx, table, limit)
	}
	return []map[string]any{}, nil
}

func (m *MockConnector) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) (*QueryResult, error) {
	m.mu.Lock()
	m.ExecuteQueryCalls++
	m.LastQuery = sqlQuery
	m.mu.Unlock()
	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, sqlQuery, maxRows)
	}
	return &QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (m *MockConnector) TestConnection(ctx context.Context) TestResult {
	m.mu.Lock()
	m.TestConnectionCalls++
	m.mu.Unlock()
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return TestResult{Success: true}
}

func (m *MockConnector) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

type mockConnection struct{}

func (mockConnection) Ping(ctx context.Context) error { return nil }
func (mockConnection) Close() error                   { return nil }

// MockFactory returns a fixed connector for every Create call.
type MockFactory struct {
	Connector   Connector
	Err         error
	CreateCalls int
	LastType    string
	LastConfig  map[string]any
}

var _ ConnectorFactory = (*MockFactory)(nil)

func (f *MockFactory) Create(engineType, host string, port int, database, username, password string) (Connector, error) {
	cfg := ConnectionConfig{Host: host, Port: port, Database: database, Username: username, Password: password}
	return f.CreateFromConfig(engineType, cfg.ToMap(nil))
}

func (f *MockFactory) CreateFromConfig(engineType string, config map[string]any) (Connector, error) {
	f.CreateCalls++
	f.LastType = engineType
	f.LastConfig = config
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Connector, nil
}

func (f *MockFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}
