package distribution

import (
	"github.com/smallbiznis/floorquote/internal/distribution/repository"
	"github.com/smallbiznis/floorquote/internal/distribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("distribution.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
