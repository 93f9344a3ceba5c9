package observability

import (
	"github.com/smallbiznis/floorquote/internal/observability/logger"
	"github.com/smallbiznis/floorquote/internal/observability/metrics"
	"github.com/smallbiznis/floorquote/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the tracer provider and the domain and
// HTTP metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.logger,
		Config.tracing,
		Config.metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
