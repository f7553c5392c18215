package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/database"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
)

// ConversationRepository provides data access for conversations and their messages.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// List returns conversations, most recently updated first.
	List(ctx context.Context, limit int) ([]*models.Conversation, error)

	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error

	// SetDatasources replaces the bound datasources, keeping the given order.
	SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error

	// AddMessage appends a message and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns messages oldest first. A positive limit keeps only the latest ones.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.DatasourceIDs == nil {
		conv.DatasourceIDs = []uuid.UUID{}
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, title, model_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			conv.ID, conv.Title, conv.ModelID, conv.CreatedAt, conv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		if err := insertDatasourceLinks(ctx, tx, conv.ID, conv.DatasourceIDs); err != nil {
			return err
		}

		return nil
	})
}

func (r *conversationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id, title, model_id, created_at, updated_at
		FROM conversations
		WHERE id = $1`, id).Scan(&conv.ID, &conv.Title, &conv.ModelID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", notFound(err, "conversation", id.String()))
	}

	links, err := r.datasourceLinks(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	conv.DatasourceIDs = links[id]
	if conv.DatasourceIDs == nil {
		conv.DatasourceIDs = []uuid.UUID{}
	}
	return &conv, nil
}

func (r *conversationRepository) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	builder := psql.Select("id", "title", "model_id", "created_at", "updated_at").
		From("conversations").
		OrderBy("updated_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*models.Conversation, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	if len(ids) == 0 {
		return convs, nil
	}

	links, err := r.datasourceLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		c.DatasourceIDs = links[c.ID]
		if c.DatasourceIDs == nil {
			c.DatasourceIDs = []uuid.UUID{}
		}
	}
	return convs, nil
}

func (r *conversationRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	return r.touch(ctx, id, map[string]any{"title": title})
}

func (r *conversationRepository) SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error {
	return r.touch(ctx, id, map[string]any{"model_id": modelID})
}

func (r *conversationRepository) SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFound("conversation", id.String())
		}

		if _, err := tx.Exec(ctx, `DELETE FROM conversation_datasources WHERE conversation_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear conversation datasources: %w", err)
		}
		if err := insertDatasourceLinks(ctx, tx, id, datasourceIDs); err != nil {
			return err
		}

		return nil
	})
}

func (r *conversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("conversation", id.String())
	}
	return nil
}

func (r *conversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, msg.ConversationID, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFound("conversation", msg.ConversationID.String())
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, sql_query, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.SQL, msg.Error, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		return nil
	})
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	inner := psql.Select("id", "conversation_id", "role", "content", "sql_query", "error", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		inner = inner.Limit(uint64(limit))
	}

	query, args, err := psql.Select("*").
		FromSelect(inner, "latest").
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.SQL, &m.Error, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

func (r *conversationRepository) touch(ctx context.Context, id uuid.UUID, set map[string]any) error {
	set["updated_at"] = time.Now()

	query, args, err := psql.Update("conversations").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("conversation", id.String())
	}
	return nil
}

func (r *conversationRepository) datasourceLinks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, datasource_id
		FROM conversation_datasources
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation datasources: %w", err)
	}
	defer rows.Close()

	links := make(map[uuid.UUID][]uuid.UUID, len(ids))
	for rows.Next() {
		var convID, dsID uuid.UUID
		if err := rows.Scan(&convID, &dsID); err != nil {
			return nil, fmt.Errorf("failed to scan conversation datasource: %w", err)
		}
		links[convID] = append(links[convID], dsID)
	}
	return links, rows.Err()
}

func insertDatasourceLinks(ctx context.Context, tx pgx.Tx, conversationID uuid.UUID, datasourceIDs []uuid.UUID) error {
	if len(datasourceIDs) == 0 {
		return nil
	}

	builder := psql.Insert("conversation_datasources").Columns("conversation_id", "datasource_id", "position")
	seen := make(map[uuid.UUID]bool, len(datasourceIDs))
	for i, dsID := range datasourceIDs {
		if seen[dsID] {
			continue
		}
		seen[dsID] = true
		builder = builder.Values(conversationID, dsID, i)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to link datasources: %w", err)
	}
	return nil
}
