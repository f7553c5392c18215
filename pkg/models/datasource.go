package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordPlaceholder is sent by clients in place of a password they do not
// want to change. It is also what the API shows for a stored password.
const PasswordPlaceholder = "******"

// Connection status values persisted by TestConnection.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Datasource is a registered external database. Password holds the vault
// ciphertext at rest and is never serialized.
type Datasource struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Type             string         `json:"type"` // "mysql", "postgresql", "kingbase", "sqlserver", "oracle"
	Host             string         `json:"host"`
	Port             int            `json:"port"`
	Database         string         `json:"database"`
	Username         string         `json:"username"`
	Password         string         `json:"-"`
	Options          map[string]any `json:"options,omitempty"`
	TableCount       int            `json:"table_count"`
	ConnectionStatus string         `json:"connection_status"`
	LastChecked      *time.Time     `json:"last_checked,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsConnected reports whether the last connection test succeeded.
func (d *Datasource) IsConnected() bool {
	return d.ConnectionStatus == StatusConnected
}
