package lead

import (
	"github.com/smallbiznis/floorquote/internal/lead/repository"
	"github.com/smallbiznis/floorquote/internal/lead/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lead.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
