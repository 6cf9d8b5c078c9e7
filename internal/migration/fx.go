package migration

import (
	"github.com/finopslab/costlens/internal/config"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	refreshdomain "github.com/finopslab/costlens/internal/refresh/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite/mysql deployments (dev, tests) use gorm's schema sync.
			return conn.AutoMigrate(
				&connectiondomain.CustomerConnection{},
				&refreshdomain.RefreshCache{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
