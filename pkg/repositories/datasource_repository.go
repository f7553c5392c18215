package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/database"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
)

// DatasourceRepository defines the interface for datasource data access.
// Password is stored as vault ciphertext; encryption is handled by the service layer.
type DatasourceRepository interface {
	// Create inserts a new datasource. Returns ErrConflict if the name is taken.
	Create(ctx context.Context, ds *models.Datasource) error

	// Get retrieves a datasource by ID, including the encrypted password.
	Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error)

	// GetByName retrieves a datasource by its unique name.
	GetByName(ctx context.Context, name string) (*models.Datasource, error)

	// List retrieves all datasources ordered by name.
	List(ctx context.Context) ([]*models.Datasource, error)

	// Update overwrites the editable fields of a datasource.
	Update(ctx context.Context, ds *models.Datasource) error

	// UpdateStatus records the outcome of a connection test.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, tableCount int, checkedAt time.Time) error

	// Delete removes a datasource by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

type datasourceRepository struct {
	db *database.DB
}

// NewDatasourceRepository creates a new datasource repository.
func NewDatasourceRepository(db *database.DB) DatasourceRepository {
	return &datasourceRepository{db: db}
}

var _ DatasourceRepository = (*datasourceRepository)(nil)

const datasourceColumns = `id, name, type, host, port, database_name, username, encrypted_password,
	options, table_count, connection_status, last_checked, created_at, updated_at`

func (r *datasourceRepository) Create(ctx context.Context, ds *models.Datasource) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	if ds.ConnectionStatus == "" {
		ds.ConnectionStatus = models.StatusDisconnected
	}
	if ds.Options == nil {
		ds.Options = map[string]any{}
	}

	query := `
		INSERT INTO datasources (id, name, type, host, port, database_name, username, encrypted_password,
			options, table_count, connection_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		ds.ID, ds.Name, ds.Type, ds.Host, ds.Port, ds.Database, ds.Username, ds.Password,
		ds.Options, ds.TableCount, ds.ConnectionStatus, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create datasource: %w", err)
	}
	return nil
}

func (r *datasourceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	row := r.db.QueryRow(ctx, `SELECT `+datasourceColumns+` FROM datasources WHERE id = $1`, id)
	ds, err := scanDatasource(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get datasource: %w", notFound(err, "datasource", id.String()))
	}
	return ds, nil
}

func (r *datasourceRepository) GetByName(ctx context.Context, name string) (*models.Datasource, error) {
	row := r.db.QueryRow(ctx, `SELECT `+datasourceColumns+` FROM datasources WHERE name = $1`, name)
	ds, err := scanDatasource(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get datasource: %w", notFound(err, "datasource", name))
	}
	return ds, nil
}

func (r *datasourceRepository) List(ctx context.Context) ([]*models.Datasource, error) {
	rows, err := r.db.Query(ctx, `SELECT `+datasourceColumns+` FROM datasources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	datasources := make([]*models.Datasource, 0)
	for rows.Next() {
		ds, err := scanDatasource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		datasources = append(datasources, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasources: %w", err)
	}
	return datasources, nil
}

func (r *datasourceRepository) Update(ctx context.Context, ds *models.Datasource) error {
	ds.UpdatedAt = time.Now()
	if ds.Options == nil {
		ds.Options = map[string]any{}
	}

	query, args, err := psql.Update("datasources").
		SetMap(map[string]any{
			"name":               ds.Name,
			"type":               ds.Type,
			"host":               ds.Host,
			"port":               ds.Port,
			"database_name":      ds.Database,
			"username":           ds.Username,
			"encrypted_password": ds.Password,
			"options":            ds.Options,
			"updated_at":         ds.UpdatedAt,
		}).
		Where("id = ?", ds.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update datasource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("datasource", ds.ID.String())
	}
	return nil
}

func (r *datasourceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, tableCount int, checkedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE datasources
		SET connection_status = $2, table_count = $3, last_checked = $4, updated_at = now()
		WHERE id = $1`, id, status, tableCount, checkedAt)
	if err != nil {
		return fmt.Errorf("failed to update datasource status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("datasource", id.String())
	}
	return nil
}

func (r *datasourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM datasources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete datasource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("datasource", id.String())
	}
	return nil
}

func scanDatasource(row pgx.Row) (*models.Datasource, error) {
	var ds models.Datasource
	err := row.Scan(
		&ds.ID,
		&ds.Name,
		&ds.Type,
		&ds.Host,
		&ds.Port,
		&ds.Database,
		&ds.Username,
		&ds.Password,
		&ds.Options,
		&ds.TableCount,
		&ds.ConnectionStatus,
		&ds.LastChecked,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
