// Package seed loads datasources and models from a YAML file at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
)

// File is the seed file layout. Secrets may be ${ENV} references.
type File struct {
	Datasources []Datasource `yaml:"datasources"`
	Models      []Model      `yaml:"models"`
}

// Datasource is one seeded datasource.
type Datasource struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	Database string         `yaml:"database"`
	Username string         `yaml:"username"`
	Password string         `yaml:"password"`
	Options  map[string]any `yaml:"options"`
}

// Model is one seeded model configuration.
type Model struct {
	Name        string   `yaml:"name"`
	Provider    string   `yaml:"provider"`
	ModelName   string   `yaml:"model_name"`
	APIBase     string   `yaml:"api_base"`
	APIVersion  string   `yaml:"api_version"`
	APIKey      string   `yaml:"api_key"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	IsDefault   bool     `yaml:"is_default"`
}

// Result counts what Apply did.
type Result struct {
	DatasourcesCreated int
	ModelsCreated      int
	Skipped            int
}

// Load reads and parses a seed file, expanding ${ENV} references first.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse parses seed YAML, expanding ${ENV} references first.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, ds := range f.Datasources {
		if ds.Name == "" {
			return nil, fmt.Errorf("datasources[%d]: name is required", i)
		}
	}
	for i, m := range f.Models {
		if m.Name == "" {
			return nil, fmt.Errorf("models[%d]: name is required", i)
		}
	}
	return &f, nil
}

// Apply creates every seeded entry whose name is not registered yet.
// Running it twice creates nothing the second time.
func Apply(ctx context.Context, f *File, datasources services.DatasourceService, models services.ModelService, logger *zap.Logger) (*Result, error) {
	logger = logger.Named("seed")
	res := &Result{}

	for _, ds := range f.Datasources {
		_, err := datasources.GetByName(ctx, ds.Name)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, apperrors.ErrNotFound):
			return res, fmt.Errorf("lookup datasource %q: %w", ds.Name, err)
		}

		_, err = datasources.Create(ctx, &services.DatasourceInput{
			Name:     ds.Name,
			Type:     ds.Type,
			Host:     ds.Host,
			Port:     ds.Port,
			Database: ds.Database,
			Username: ds.Username,
			Password: ds.Password,
			Options:  ds.Options,
		})
		if err != nil {
			return res, fmt.Errorf("seed datasource %q: %w", ds.Name, err)
		}
		res.DatasourcesCreated++
		logger.Info("Seeded datasource", zap.String("name", ds.Name), zap.String("type", ds.Type))
	}

	for _, m := range f.Models {
		_, err := models.GetByName(ctx, m.Name)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, apperrors.ErrNotFound):
			return res, fmt.Errorf("lookup model %q: %w", m.Name, err)
		}

		_, err = models.Create(ctx, &services.ModelInput{
			Name:        m.Name,
			Provider:    m.Provider,
			ModelName:   m.ModelName,
			APIBase:     m.APIBase,
			APIVersion:  m.APIVersion,
			APIKey:      m.APIKey,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
			IsDefault:   m.IsDefault,
		})
		if err != nil {
			return res, fmt.Errorf("seed model %q: %w", m.Name, err)
		}
		res.ModelsCreated++
		logger.Info("Seeded model", zap.String("name", m.Name), zap.String("provider", m.Provider))
	}

	return res, nil
}
