package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
		wantStatus    int
	}{
		{
			name:       "openai 401",
			err:        &openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"},
			wantType:   ErrorTypeAuth,
			wantStatus: 401,
		},
		{
			name:       "openai 404",
			err:        &openai.APIError{HTTPStatusCode: 404, Message: "The model does not exist"},
			wantType:   ErrorTypeModel,
			wantStatus: 404,
		},
		{
			name:          "openai 429",
			err:           &openai.APIError{HTTPStatusCode: 429, Message: "slow down"},
			wantType:      ErrorTypeRate,
			wantRetryable: true,
			wantStatus:    429,
		},
		{
			name:          "request error 502",
			err:           &openai.RequestError{HTTPStatusCode: 502, Body: []byte("bad gateway"), Err: errors.New("bad gateway")},
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
			wantStatus:    502,
		},
		{
			name:     "anthropic auth text",
			err:      errors.New("anthropic api error type: authentication_error, message: invalid x-api-key"),
			wantType: ErrorTypeAuth,
		},
		{
			name:          "connection refused",
			err:           errors.New("dial tcp 127.0.0.1:1: connect: connection refused"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "deadline",
			err:           fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:     "unknown",
			err:      errors.New("something else"),
			wantType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantRetryable, got.Retryable)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyError_PassesThroughClassified(t *testing.T) {
	orig := NewError(ErrorTypeModel, "model missing", false, nil)
	assert.Same(t, orig, ClassifyError(fmt.Errorf("wrap: %w", orig)))
	assert.Nil(t, ClassifyError(nil))
}

func TestErrorString(t *testing.T) {
	e := &Error{
		Type:       ErrorTypeAuth,
		Message:    "authentication failed",
		StatusCode: 401,
		Model:      "gpt-4o",
		Endpoint:   "https://api.openai.com/v1",
	}
	s := e.Error()
	assert.Contains(t, s, "auth")
	assert.Contains(t, s, "HTTP 401")
	assert.Contains(t, s, "model=gpt-4o")
	assert.Contains(t, s, "api.openai.com")
}

func TestIsRetryableAndGetErrorType(t *testing.T) {
	retryable := NewError(ErrorTypeRate, "rate limited", true, nil)
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", retryable)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorTypeRate, GetErrorType(retryable))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}
