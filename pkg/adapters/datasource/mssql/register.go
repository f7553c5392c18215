package mssql

import (
	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+ with SQL authentication",
			DefaultPort: DefaultPort(),
		},
		Aliases: []string{"mssql"},
		New: func(config map[string]any, opts datasource.Options) (datasource.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg, opts), nil
		},
	})
}
