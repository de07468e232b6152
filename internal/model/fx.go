package model

import (
	"context"

	"github.com/retainly/retainly/internal/model/registry"
	"github.com/retainly/retainly/internal/model/trainer"
	"go.uber.org/fx"
)

var Module = fx.Module("model.service",
	fx.Provide(registry.New),
	fx.Provide(trainer.New),
	fx.Invoke(loadActive),
)

func loadActive(lc fx.Lifecycle, reg *registry.Registry) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return reg.LoadActive(ctx)
		},
	})
}
