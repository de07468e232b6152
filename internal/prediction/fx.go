package prediction

import (
	"github.com/retainly/retainly/internal/prediction/cache"
	"github.com/retainly/retainly/internal/prediction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prediction.service",
	fx.Provide(cache.New),
	fx.Provide(service.New),
)
