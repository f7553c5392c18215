package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/crypto"
	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
	"github.com/wenshu-inc/wenshu-engine/pkg/metrics"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/repositories"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
	"github.com/wenshu-inc/wenshu-engine/pkg/workerpool"
)

// Sample bounds for GetSampleData.
const (
	MinSampleLimit = 1
	MaxSampleLimit = 100
)

// DatasourceInput carries the editable fields of a datasource. Password is
// plaintext; models.PasswordPlaceholder on update keeps the stored one.
type DatasourceInput struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Database string         `json:"database"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Options  map[string]any `json:"options,omitempty"`
}

// TestConnectionRequest describes a connection to test. ID is set when the
// datasource is already registered, which lets Password be the placeholder.
type TestConnectionRequest struct {
	ID       *uuid.UUID     `json:"id,omitempty"`
	Type     string         `json:"type"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Database string         `json:"database"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Options  map[string]any `json:"options,omitempty"`
}

// ConnectionTestResult is the user-facing outcome of a connection test.
// Failures are reported here, not as errors.
type ConnectionTestResult struct {
	Success    bool   `json:"success"`
	TableCount int    `json:"table_count"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	RawError   string `json:"raw_error,omitempty"`
}

// RefreshResult reports one datasource re-tested by RefreshAll.
type RefreshResult struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	TableCount int       `json:"table_count"`
	Error      string    `json:"error,omitempty"`
}

// DatasourceService manages registered datasources and reads from them.
type DatasourceService interface {
	Create(ctx context.Context, input *DatasourceInput) (*models.Datasource, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error)
	GetByName(ctx context.Context, name string) (*models.Datasource, error)
	List(ctx context.Context) ([]*models.Datasource, error)
	Update(ctx context.Context, id uuid.UUID, input *DatasourceInput) (*models.Datasource, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// TestConnection tests connectivity and, when req.ID is set, persists the outcome.
	TestConnection(ctx context.Context, req *TestConnectionRequest) (*ConnectionTestResult, error)

	// GetSchema introspects every table. Per-table failures land in Skipped.
	GetSchema(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error)

	// GetSampleData returns up to limit rows of one table, limit clamped to [1, 100].
	GetSampleData(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error)

	// GetAllSampleData samples every table. A failing table maps to an empty slice.
	GetAllSampleData(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error)

	// ExecuteReadonlyQuery gates, normalizes and runs a statement. maxRows <= 0
	// means the configured default.
	ExecuteReadonlyQuery(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error)

	// RefreshAll re-tests every datasource and records the outcome.
	RefreshAll(ctx context.Context) []RefreshResult
}

// DatasourceServiceConfig holds the limits applied by the service.
type DatasourceServiceConfig struct {
	SampleLimit  int
	MaxQueryRows int
}

type datasourceService struct {
	repo    repositories.DatasourceRepository
	vault   *crypto.Vault
	factory datasource.ConnectorFactory
	pool    *workerpool.Pool
	config  DatasourceServiceConfig
	logger  *zap.Logger
}

// NewDatasourceService creates a new datasource service with dependencies.
func NewDatasourceService(
	repo repositories.DatasourceRepository,
	vault *crypto.Vault,
	factory datasource.ConnectorFactory,
	pool *workerpool.Pool,
	config DatasourceServiceConfig,
	logger *zap.Logger,
) DatasourceService {
	if config.SampleLimit <= 0 {
		config.SampleLimit = 3
	}
	if config.MaxQueryRows <= 0 {
		config.MaxQueryRows = 100
	}
	return &datasourceService{
		repo:    repo,
		vault:   vault,
		factory: factory,
		pool:    pool,
		config:  config,
		logger:  logger.Named("datasource"),
	}
}

var _ DatasourceService = (*datasourceService)(nil)

func (s *datasourceService) Create(ctx context.Context, input *DatasourceInput) (*models.Datasource, error) {
	if err := validateDatasourceInput(input); err != nil {
		return nil, err
	}
	if _, ok := datasource.Lookup(input.Type); !ok {
		return nil, apperrors.NewUnsupportedEngineError(input.Type)
	}

	ds := &models.Datasource{
		Name:     strings.TrimSpace(input.Name),
		Type:     strings.ToLower(input.Type),
		Host:     input.Host,
		Port:     input.Port,
		Database: input.Database,
		Username: input.Username,
		Password: s.vault.Encrypt(input.Password),
		Options:  input.Options,
	}

	if err := s.repo.Create(ctx, ds); err != nil {
		return nil, err
	}

	s.logger.Info("Created datasource",
		zap.String("id", ds.ID.String()),
		zap.String("name", ds.Name),
		zap.String("type", ds.Type))

	return ds, nil
}

func (s *datasourceService) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	return s.repo.Get(ctx, id)
}

func (s *datasourceService) GetByName(ctx context.Context, name string) (*models.Datasource, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *datasourceService) List(ctx context.Context) ([]*models.Datasource, error) {
	return s.repo.List(ctx)
}

func (s *datasourceService) Update(ctx context.Context, id uuid.UUID, input *DatasourceInput) (*models.Datasource, error) {
	if err := validateDatasourceInput(input); err != nil {
		return nil, err
	}
	if _, ok := datasource.Lookup(input.Type); !ok {
		return nil, apperrors.NewUnsupportedEngineError(input.Type)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Type = strings.ToLower(input.Type)
	existing.Host = input.Host
	existing.Port = input.Port
	existing.Database = input.Database
	existing.Username = input.Username
	existing.Options = input.Options
	if input.Password != models.PasswordPlaceholder {
		existing.Password = s.vault.Encrypt(input.Password)
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.logger.Info("Updated datasource",
		zap.String("id", id.String()),
		zap.Bool("password_changed", input.Password != models.PasswordPlaceholder))

	return existing, nil
}

func (s *datasourceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted datasource", zap.String("id", id.String()))
	return nil
}

func (s *datasourceService) TestConnection(ctx context.Context, req *TestConnectionRequest) (*ConnectionTestResult, error) {
	password := req.Password
	if req.ID != nil && password == models.PasswordPlaceholder {
		stored, err := s.repo.Get(ctx, *req.ID)
		if err != nil {
			return nil, err
		}
		password = s.decryptPassword(stored)
	}

	connector, err := s.factory.CreateFromConfig(req.Type, datasource.ConnectionConfig{
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: password,
	}.ToMap(req.Options))
	if err != nil {
		return nil, err
	}

	outcome := connector.TestConnection(ctx)
	metrics.Global().ConnectionTests.WithLabelValues(connector.Type(), metrics.Outcome(outcome.Success)).Inc()

	result := &ConnectionTestResult{
		Success:    outcome.Success,
		TableCount: outcome.TableCount,
		Message:    fmt.Sprintf("连接成功，共发现 %d 个表", outcome.TableCount),
	}
	if !outcome.Success {
		classified := apperrors.ClassifyConnectionError(outcome.Err)
		if classified == nil {
			classified = apperrors.NewConnectionError(apperrors.KindUnknown, errors.New(outcome.Error))
		}
		result.TableCount = 0
		result.Message = classified.FriendlyMessage
		result.Suggestion = classified.Suggestion
		result.ErrorType = classified.ErrorType
		result.RawError = outcome.Error
	}

	if req.ID != nil {
		status := models.StatusDisconnected
		if outcome.Success {
			status = models.StatusConnected
		}
		if err := s.repo.UpdateStatus(ctx, *req.ID, status, result.TableCount, time.Now()); err != nil {
			s.logger.Warn("Failed to record connection status",
				zap.String("id", req.ID.String()),
				zap.Error(err))
		}
	}

	return result, nil
}

func (s *datasourceService) GetSchema(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error) {
	connector, err := s.connectorFor(ctx, id)
	if err != nil {
		return nil, err
	}

	tables, err := connector.ListTables(ctx)
	if err != nil {
		return nil, apperrors.ClassifyConnectionError(err)
	}

	items := make([]workerpool.Item[datasource.TableSchema], len(tables))
	for i, t := range tables {
		t := t
		items[i] = workerpool.Item[datasource.TableSchema]{
			ID: t.Name,
			Execute: func(ctx context.Context) (datasource.TableSchema, error) {
				return describeTable(ctx, connector, t)
			},
		}
	}

	results := workerpool.Process(ctx, s.pool, items, nil)
	byName := make(map[string]workerpool.Result[datasource.TableSchema], len(results))
	for _, r := range results {
		byName[r.ID] = r
	}

	snapshot := &datasource.SchemaSnapshot{Tables: make([]datasource.TableSchema, 0, len(tables))}
	for _, t := range tables {
		r := byName[t.Name]
		if r.Err != nil {
			s.logger.Warn("Skipping table whose schema could not be read",
				zap.String("datasource_id", id.String()),
				zap.String("table", t.Name),
				zap.String("error", logging.SanitizeError(r.Err)))
			snapshot.Skipped = append(snapshot.Skipped, datasource.SkippedTable{
				Name:  t.Name,
				Error: logging.SanitizeError(r.Err),
			})
			continue
		}
		for _, w := range r.Result.Warnings {
			s.logger.Warn("Table schema is partial",
				zap.String("datasource_id", id.String()),
				zap.String("table", t.Name),
				zap.String("warning", w))
		}
		snapshot.Tables = append(snapshot.Tables, r.Result)
	}

	if includeViews {
		snapshot.Views = s.describeViews(ctx, id, connector)
	}

	s.logger.Debug("Schema snapshot complete",
		zap.String("datasource_id", id.String()),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("skipped", len(snapshot.Skipped)))

	return snapshot, nil
}

// describeViews lists views with their columns. A view whose columns cannot
// be read is kept with an empty column list.
func (s *datasourceService) describeViews(ctx context.Context, id uuid.UUID, connector datasource.Connector) []datasource.ViewSchema {
	views, err := connector.ListViews(ctx)
	if err != nil {
		s.logger.Warn("Failed to list views",
			zap.String("datasource_id", id.String()),
			zap.String("error", logging.SanitizeError(err)))
	}

	items := make([]workerpool.Item[[]datasource.ColumnInfo], len(views))
	for i, v := range views {
		v := v
		items[i] = workerpool.Item[[]datasource.ColumnInfo]{
			ID: v,
			Execute: func(ctx context.Context) ([]datasource.ColumnInfo, error) {
				return connector.TableSchema(ctx, v)
			},
		}
	}
	results := workerpool.Process(ctx, s.pool, items, nil)
	byName := make(map[string]workerpool.Result[[]datasource.ColumnInfo], len(results))
	for _, r := range results {
		byName[r.ID] = r
	}

	out := make([]datasource.ViewSchema, 0, len(views))
	for _, v := range views {
		r := byName[v]
		columns := r.Result
		if r.Err != nil {
			s.logger.Warn("Failed to read view columns",
				zap.String("datasource_id", id.String()),
				zap.String("view", v),
				zap.String("error", logging.SanitizeError(r.Err)))
			columns = nil
		}
		if columns == nil {
			columns = []datasource.ColumnInfo{}
		}
		out = append(out, datasource.ViewSchema{Name: v, Columns: columns})
	}
	return out
}

// describeTable gathers columns, keys and indexes of one table. Only a
// column failure drops the table; missing foreign keys or indexes become
// warnings on an otherwise complete entry.
func describeTable(ctx context.Context, connector datasource.Connector, t datasource.TableInfo) (datasource.TableSchema, error) {
	columns, err := connector.TableSchema(ctx, t.Name)
	if err != nil {
		return datasource.TableSchema{}, fmt.Errorf("columns: %w", err)
	}

	var warnings []string
	fks, err := connector.ForeignKeys(ctx, t.Name)
	if err != nil {
		warnings = append(warnings, "foreign keys unavailable: "+logging.SanitizeError(err))
		fks = nil
	}
	indexes, err := connector.Indexes(ctx, t.Name)
	if err != nil {
		warnings = append(warnings, "indexes unavailable: "+logging.SanitizeError(err))
		indexes = nil
	}

	pks := datasource.PrimaryKeyColumns(columns)
	if pks == nil {
		pks = []string{}
	}
	if fks == nil {
		fks = []datasource.ForeignKey{}
	}
	if indexes == nil {
		indexes = []datasource.Index{}
	}

	return datasource.TableSchema{
		Name:        t.Name,
		Comment:     t.Description,
		Columns:     columns,
		PrimaryKeys: pks,
		ForeignKeys: fks,
		Indexes:     indexes,
		Warnings:    warnings,
	}, nil
}

func (s *datasourceService) GetSampleData(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error) {
	connector, err := s.connectorFor(ctx, id)
	if err != nil {
		return nil, err
	}

	tables, err := connector.ListTables(ctx)
	if err != nil {
		return nil, apperrors.ClassifyConnectionError(err)
	}
	found := false
	for _, t := range tables {
		if t.Name == table {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.NewNotFound("table", table)
	}

	rows, err := connector.SampleRows(ctx, table, clampSampleLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func clampSampleLimit(limit int) int {
	if limit < MinSampleLimit {
		return MinSampleLimit
	}
	if limit > MaxSampleLimit {
		return MaxSampleLimit
	}
	return limit
}

func (s *datasourceService) GetAllSampleData(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error) {
	connector, err := s.connectorFor(ctx, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.config.SampleLimit {
		limit = s.config.SampleLimit
	}

	tables, err := connector.ListTables(ctx)
	if err != nil {
		return nil, apperrors.ClassifyConnectionError(err)
	}

	items := make([]workerpool.Item[[]map[string]any], len(tables))
	for i, t := range tables {
		name := t.Name
		items[i] = workerpool.Item[[]map[string]any]{
			ID: name,
			Execute: func(ctx context.Context) ([]map[string]any, error) {
				return connector.SampleRows(ctx, name, limit)
			},
		}
	}

	samples := make(datasource.SampleRowSet, len(tables))
	for _, r := range workerpool.Process(ctx, s.pool, items, nil) {
		if r.Err != nil || r.Result == nil {
			if r.Err != nil {
				s.logger.Warn("Failed to sample table",
					zap.String("table", r.ID),
					zap.String("error", logging.SanitizeError(r.Err)))
			}
			samples[r.ID] = []map[string]any{}
			continue
		}
		samples[r.ID] = r.Result
	}
	return samples, nil
}

func (s *datasourceService) ExecuteReadonlyQuery(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error) {
	if err := sqlgate.CheckReadOnly(query, surface); err != nil {
		s.logger.Warn("Rejected non read-only statement",
			zap.String("surface", string(surface)),
			zap.String("query", logging.SanitizeQuery(query)))
		return nil, err
	}

	normalized, err := sqlgate.ValidateAndNormalize(query)
	if err != nil {
		return nil, &apperrors.UnsafeQueryError{Query: query, Reason: err.Error()}
	}

	if maxRows <= 0 {
		maxRows = s.config.MaxQueryRows
	}

	connector, err := s.connectorFor(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := connector.ExecuteQuery(ctx, normalized, maxRows)
	metrics.Global().QueryDuration.WithLabelValues(connector.Type()).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Query execution failed",
			zap.String("datasource_id", id.String()),
			zap.String("query", logging.SanitizeQuery(normalized)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	s.logger.Info("Query executed",
		zap.String("datasource_id", id.String()),
		zap.Int("rows", len(result.Rows)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (s *datasourceService) RefreshAll(ctx context.Context) []RefreshResult {
	all, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list datasources for refresh", zap.Error(err))
		return []RefreshResult{}
	}

	results := make([]RefreshResult, 0, len(all))
	for _, ds := range all {
		id := ds.ID
		res, err := s.TestConnection(ctx, &TestConnectionRequest{
			ID:       &id,
			Type:     ds.Type,
			Host:     ds.Host,
			Port:     ds.Port,
			Database: ds.Database,
			Username: ds.Username,
			Password: models.PasswordPlaceholder,
			Options:  ds.Options,
		})

		r := RefreshResult{ID: ds.ID, Name: ds.Name, Status: models.StatusDisconnected}
		switch {
		case err != nil:
			r.Error = logging.SanitizeError(err)
		case res.Success:
			r.Status = models.StatusConnected
			r.TableCount = res.TableCount
		default:
			r.Error = res.Message
		}
		results = append(results, r)
	}
	return results
}

// connectorFor loads a datasource and builds its connector with the decrypted password.
func (s *datasourceService) connectorFor(ctx context.Context, id uuid.UUID) (datasource.Connector, error) {
	ds, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.connector(ds)
}

func (s *datasourceService) connector(ds *models.Datasource) (datasource.Connector, error) {
	return s.factory.CreateFromConfig(ds.Type, datasource.ConnectionConfig{
		Host:     ds.Host,
		Port:     ds.Port,
		Database: ds.Database,
		Username: ds.Username,
		Password: s.decryptPassword(ds),
	}.ToMap(ds.Options))
}

func (s *datasourceService) decryptPassword(ds *models.Datasource) string {
	plaintext, status := s.vault.DecryptWithStatus(ds.Password)
	if status == crypto.Degraded {
		s.logger.Warn("Datasource password could not be decrypted, using default credential",
			zap.String("datasource_id", ds.ID.String()),
			zap.String("name", ds.Name))
	}
	return plaintext
}

func validateDatasourceInput(input *DatasourceInput) error {
	switch {
	case input == nil:
		return fmt.Errorf("%w: datasource is required", apperrors.ErrInvalidInput)
	case strings.TrimSpace(input.Name) == "":
		return fmt.Errorf("%w: datasource name is required", apperrors.ErrInvalidInput)
	case strings.TrimSpace(input.Type) == "":
		return fmt.Errorf("%w: datasource type is required", apperrors.ErrInvalidInput)
	case strings.TrimSpace(input.Host) == "":
		return fmt.Errorf("%w: host is required", apperrors.ErrInvalidInput)
	case input.Port < 0 || input.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", apperrors.ErrInvalidInput, input.Port)
	}
	return nil
}
