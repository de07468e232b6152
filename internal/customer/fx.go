package customer

import (
	"github.com/retainly/retainly/internal/customer/repository"
	"github.com/retainly/retainly/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
