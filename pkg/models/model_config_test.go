package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

func TestModelConfig_Validate(t *testing.T) {
	valid := func() ModelConfig {
		return ModelConfig{Name: "ds", Provider: "deepseek", ModelName: "deepseek-chat", Temperature: 0.7, MaxTokens: 4096}
	}

	tests := []struct {
		name    string
		mutate  func(*ModelConfig)
		wantErr bool
	}{
		{"valid", func(*ModelConfig) {}, false},
		{"temperature zero", func(m *ModelConfig) { m.Temperature = 0 }, false},
		{"temperature two", func(m *ModelConfig) { m.Temperature = 2 }, false},
		{"temperature too high", func(m *ModelConfig) { m.Temperature = 2.1 }, true},
		{"temperature negative", func(m *ModelConfig) { m.Temperature = -0.1 }, true},
		{"max tokens zero", func(m *ModelConfig) { m.MaxTokens = 0 }, true},
		{"missing name", func(m *ModelConfig) { m.Name = " " }, true},
		{"missing provider", func(m *ModelConfig) { m.Provider = "" }, true},
		{"missing model", func(m *ModelConfig) { m.ModelName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(&m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSecretsNotSerialized(t *testing.T) {
	ds := Datasource{Name: "shop", Password: "ciphertext"}
	m := ModelConfig{Name: "gpt", APIKey: "sk-secret"}

	for _, v := range []any{ds, m} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		s := string(b)
		if strings.Contains(s, "ciphertext") || strings.Contains(s, "sk-secret") {
			t.Errorf("secret leaked in JSON: %s", s)
		}
	}
}
