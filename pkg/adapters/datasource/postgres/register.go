package postgres

import (
	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "postgresql",
			DisplayName: "PostgreSQL / Kingbase",
			Description: "Connect to PostgreSQL 12+ and Kingbase (PostgreSQL mode)",
			DefaultPort: DefaultPort(),
		},
		Aliases: []string{"postgres", "kingbase", "kingbasees"},
		New: func(config map[string]any, opts datasource.Options) (datasource.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg, opts), nil
		},
	})
}
