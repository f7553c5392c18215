package llm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType indicates which configuration field caused the error.
type ErrorType string

const (
	ErrorTypeNone     ErrorType = ""
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeRate     ErrorType = "rate_limit"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured LLM provider error with classification.
// Retryable is informational; nothing in this module retries.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if applicable
	Body       string // provider response body for non-2xx replies
	Model      string
	Endpoint   string
}

// Error implements the error interface. The endpoint is reduced to its host.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", host))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
// go-openai API and request errors keep their HTTP status and body.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := classifyStatus(apiErr.HTTPStatusCode, err)
		e.Body = apiErr.Message
		return e
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := classifyStatus(reqErr.HTTPStatusCode, err)
		e.Body = string(reqErr.Body)
		return e
	}

	return classifyMessage(err)
}

// classifyStatus maps an HTTP status from the provider onto an Error.
func classifyStatus(status int, err error) *Error {
	var e *Error
	switch {
	case status == 401 || status == 403:
		e = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == 404:
		e = NewError(ErrorTypeModel, "model or endpoint not found", false, err)
	case status == 429:
		e = NewError(ErrorTypeRate, "rate limited", true, err)
	case status >= 500:
		e = NewError(ErrorTypeEndpoint, "server error", true, err)
	case status >= 400:
		e = NewError(ErrorTypeUnknown, "request rejected", false, err)
	default:
		return classifyMessage(err)
	}
	e.StatusCode = status
	return e
}

// classifyMessage falls back to matching error text.
func classifyMessage(err error) *Error {
	errStr := err.Error()
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "authentication_error") ||
		strings.Contains(lower, "invalid x-api-key"):
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "context canceled"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		return NewError(ErrorTypeRate, "rate limited", true, err)
	case strings.Contains(lower, "overloaded"):
		return NewError(ErrorTypeEndpoint, "server overloaded", true, err)
	}

	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
