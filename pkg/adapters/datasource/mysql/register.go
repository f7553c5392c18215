package mysql

import (
	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+ and MariaDB",
			DefaultPort: DefaultPort(),
		},
		Aliases: []string{"mariadb"},
		New: func(config map[string]any, opts datasource.Options) (datasource.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg, opts), nil
		},
	})
}
