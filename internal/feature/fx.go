package feature

import (
	"github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/internal/feature/service"
	featurestore "github.com/retainly/retainly/internal/feature/store"
	"go.uber.org/fx"
)

var Module = fx.Module("feature.service",
	fx.Provide(service.New),
	fx.Provide(featurestore.New),
	fx.Provide(func(s *featurestore.Store) domain.Store { return s }),
)
