package credit

import (
	"github.com/smallbiznis/floorquote/internal/credit/repository"
	"github.com/smallbiznis/floorquote/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
