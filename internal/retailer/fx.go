package retailer

import (
	"github.com/smallbiznis/floorquote/internal/retailer/repository"
	"github.com/smallbiznis/floorquote/internal/retailer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("retailer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
