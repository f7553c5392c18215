package oracle

import (
	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "oracle",
			DisplayName: "Oracle Database",
			Description: "Connect to Oracle 12c+ by service name (requires Oracle Instant Client)",
			DefaultPort: DefaultPort(),
		},
		New: func(config map[string]any, opts datasource.Options) (datasource.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg, opts), nil
		},
	})
}
