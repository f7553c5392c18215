package datasource

import (
	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

// ConnectorFactory creates connectors from the registry.
type ConnectorFactory interface {
	// Create builds a connector from discrete connection fields.
	Create(engineType, host string, port int, database, username, password string) (Connector, error)

	// CreateFromConfig builds a connector from a generic config map, which may
	// carry engine options such as "ssl_mode" or "encrypt".
	CreateFromConfig(engineType string, config map[string]any) (Connector, error)

	// ListTypes returns info for all registered engine types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	opts Options
}

// NewConnectorFactory returns a factory that uses the global registry.
func NewConnectorFactory(opts Options) ConnectorFactory {
	return &registryFactory{opts: opts}
}

func (f *registryFactory) Create(engineType, host string, port int, database, username, password string) (Connector, error) {
	cfg := ConnectionConfig{
		Host:     host,
		Port:     port,
		Database: database,
		Username: username,
		Password: password,
	}
	return f.CreateFromConfig(engineType, cfg.ToMap(nil))
}

func (f *registryFactory) CreateFromConfig(engineType string, config map[string]any) (Connector, error) {
	reg, ok := Lookup(engineType)
	if !ok {
		return nil, apperrors.NewUnsupportedEngineError(engineType)
	}

	connector, err := reg.New(config, f.opts)
	if err != nil {
		return nil, &apperrors.ConfigurationError{
			Field:   "config",
			Value:   reg.Info.Type,
			Message: err.Error(),
		}
	}
	return connector, nil
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements ConnectorFactory at compile time.
var _ ConnectorFactory = (*registryFactory)(nil)

