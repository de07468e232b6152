package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/analytics"
	"github.com/retainly/retainly/internal/clock"
	"github.com/retainly/retainly/internal/config"
	"github.com/retainly/retainly/internal/customer"
	"github.com/retainly/retainly/internal/feature"
	"github.com/retainly/retainly/internal/logger"
	"github.com/retainly/retainly/internal/metrics"
	"github.com/retainly/retainly/internal/migration"
	"github.com/retainly/retainly/internal/model"
	"github.com/retainly/retainly/internal/pipeline"
	"github.com/retainly/retainly/internal/prediction"
	"github.com/retainly/retainly/internal/server"
	"github.com/retainly/retainly/internal/tracking"
	"github.com/retainly/retainly/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		customer.Module,
		feature.Module,
		model.Module,
		prediction.Module,
		pipeline.Module,
		analytics.Module,
		tracking.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
