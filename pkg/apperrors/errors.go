package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnsafeQuery       = errors.New("unsafe query")
	ErrUnsupportedEngine = errors.New("unsupported engine")
	ErrCredential        = errors.New("credential unavailable")
	ErrConnection        = errors.New("connection failed")
	ErrInvalidInput      = errors.New("invalid input")
)

// ConfigurationError reports a bad or unsupported configuration value.
// It is fatal for the operation and never retried.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
}

// UnsupportedEngineError is returned by the connector factory for unknown engine types.
type UnsupportedEngineError struct {
	ConfigurationError
}

// NewUnsupportedEngineError names the rejected engine type.
func NewUnsupportedEngineError(engineType string) *UnsupportedEngineError {
	return &UnsupportedEngineError{ConfigurationError{
		Field:   "type",
		Value:   engineType,
		Message: "unsupported database type",
	}}
}

func (e *UnsupportedEngineError) Unwrap() error { return ErrUnsupportedEngine }

// CredentialError means a stored secret could not be decrypted with any configured key.
type CredentialError struct {
	Subject string
	Cause   error
}

func (e *CredentialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("credential for %s unavailable: %v", e.Subject, e.Cause)
	}
	return fmt.Sprintf("credential for %s unavailable", e.Subject)
}

func (e *CredentialError) Unwrap() []error { return []error{ErrCredential, e.Cause} }

// UnsafeQueryError is returned when the read-only gate rejects a statement.
type UnsafeQueryError struct {
	Query  string
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("只允许执行只读查询(SELECT): %s", e.Reason)
}

func (e *UnsafeQueryError) Unwrap() error { return ErrUnsafeQuery }

// NotFoundError names the resource that could not be found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
