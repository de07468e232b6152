package migration

import (
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	modeldomain "github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/pipeline"
	"github.com/retainly/retainly/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are dev/test targets; AutoMigrate keeps them
			// in step without maintaining per-dialect SQL.
			err := conn.AutoMigrate(
				&customerdomain.Customer{},
				&customerdomain.UsageMetric{},
				&customerdomain.ChurnEvent{},
				&featuredomain.Record{},
				&modeldomain.Artifact{},
				&pipeline.Watermark{},
			)
			if err != nil {
				return err
			}
		}

		if cfg.SeedSampleData {
			return seed.EnsureSampleData(conn)
		}
		return nil
	}),
)
