package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation groups messages with the model and datasources they run against.
// DatasourceIDs is ordered; only the first one is queried.
type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	ModelID       *uuid.UUID  `json:"model_id,omitempty"`
	DatasourceIDs []uuid.UUID `json:"datasource_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Message is one persisted conversation turn.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	SQL            *string   `json:"sql,omitempty"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
