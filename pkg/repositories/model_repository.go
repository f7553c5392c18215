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

// ModelRepository defines the interface for model configuration data access.
// At most one row has is_default set; SetDefault switches it in one transaction.
type ModelRepository interface {
	Create(ctx context.Context, m *models.ModelConfig) error
	Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error)
	GetByName(ctx context.Context, name string) (*models.ModelConfig, error)

	// GetDefault returns the default model, or a NotFoundError if none is set.
	GetDefault(ctx context.Context) (*models.ModelConfig, error)

	List(ctx context.Context) ([]*models.ModelConfig, error)
	Update(ctx context.Context, m *models.ModelConfig) error

	// SetDefault clears the current default and marks id as the default.
	SetDefault(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}

type modelRepository struct {
	db *database.DB
}

// NewModelRepository creates a new model configuration repository.
func NewModelRepository(db *database.DB) ModelRepository {
	return &modelRepository{db: db}
}

var _ ModelRepository = (*modelRepository)(nil)

const modelColumns = `id, name, provider, model_name, api_base, api_version, encrypted_api_key,
	temperature, max_tokens, is_default, is_active, created_at, updated_at`

// Create inserts the model. A default model is inserted as non-default first
// and then promoted inside the same transaction.
func (r *modelRepository) Create(ctx context.Context, m *models.ModelConfig) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO model_configs (id, name, provider, model_name, api_base, api_version, encrypted_api_key,
				temperature, max_tokens, is_default, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11, $12)`,
			m.ID, m.Name, m.Provider, m.ModelName, m.APIBase, m.APIVersion, m.APIKey,
			m.Temperature, m.MaxTokens, m.IsActive, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrConflict
			}
			return fmt.Errorf("failed to create model: %w", err)
		}

		if m.IsDefault {
			if err := setDefaultTx(ctx, tx, m.ID); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *modelRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	m, err := scanModel(r.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM model_configs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", notFound(err, "model", id.String()))
	}
	return m, nil
}

func (r *modelRepository) GetByName(ctx context.Context, name string) (*models.ModelConfig, error) {
	m, err := scanModel(r.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM model_configs WHERE name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", notFound(err, "model", name))
	}
	return m, nil
}

func (r *modelRepository) GetDefault(ctx context.Context) (*models.ModelConfig, error) {
	m, err := scanModel(r.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM model_configs WHERE is_default LIMIT 1`))
	if err != nil {
		return nil, fmt.Errorf("failed to get default model: %w", notFound(err, "model", "default"))
	}
	return m, nil
}

func (r *modelRepository) List(ctx context.Context) ([]*models.ModelConfig, error) {
	query, args, err := psql.Select(modelColumns).
		From("model_configs").
		OrderBy("is_default DESC", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	result := make([]*models.ModelConfig, 0)
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return result, nil
}

// Update overwrites the editable fields. is_default is only ever raised here,
// through the same path as SetDefault; clearing it is a plain column update.
func (r *modelRepository) Update(ctx context.Context, m *models.ModelConfig) error {
	m.UpdatedAt = time.Now()

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		set := map[string]any{
			"name":              m.Name,
			"provider":          m.Provider,
			"model_name":        m.ModelName,
			"api_base":          m.APIBase,
			"api_version":       m.APIVersion,
			"encrypted_api_key": m.APIKey,
			"temperature":       m.Temperature,
			"max_tokens":        m.MaxTokens,
			"is_active":         m.IsActive,
			"updated_at":        m.UpdatedAt,
		}
		if !m.IsDefault {
			set["is_default"] = false
		}

		query, args, err := psql.Update("model_configs").SetMap(set).Where("id = ?", m.ID).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrConflict
			}
			return fmt.Errorf("failed to update model: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFound("model", m.ID.String())
		}

		if m.IsDefault {
			if err := setDefaultTx(ctx, tx, m.ID); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *modelRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return setDefaultTx(ctx, tx, id)
	})
}

// setDefaultTx clears every other default before raising id, so the partial
// unique index never sees two defaults.
func setDefaultTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE model_configs SET is_default = false, updated_at = now() WHERE is_default AND id <> $1`, id); err != nil {
		return fmt.Errorf("failed to clear default model: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE model_configs SET is_default = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to set default model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("model", id.String())
	}
	return nil
}

func (r *modelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM model_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("model", id.String())
	}
	return nil
}

func scanModel(row pgx.Row) (*models.ModelConfig, error) {
	var m models.ModelConfig
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Provider,
		&m.ModelName,
		&m.APIBase,
		&m.APIVersion,
		&m.APIKey,
		&m.Temperature,
		&m.MaxTokens,
		&m.IsDefault,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
