package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	leadsSubmitted metric.Int64Counter
	verifications  metric.Int64Counter
	settlements    metric.Int64Counter
	distributions  metric.Int64Counter
	paymentEvents  metric.Int64Counter
	jobRuns        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New creates the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "floorquote"
	}
	meter := provider.Meter(name)

	var m Metrics
	var err error
	if m.leadsSubmitted, err = meter.Int64Counter("floorquote_leads_submitted_total"); err != nil {
		return nil, err
	}
	if m.verifications, err = meter.Int64Counter("floorquote_lead_verifications_total"); err != nil {
		return nil, err
	}
	if m.settlements, err = meter.Int64Counter("floorquote_settlements_total"); err != nil {
		return nil, err
	}
	if m.distributions, err = meter.Int64Counter("floorquote_distribution_runs_total"); err != nil {
		return nil, err
	}
	if m.paymentEvents, err = meter.Int64Counter("floorquote_payment_events_total"); err != nil {
		return nil, err
	}
	if m.jobRuns, err = meter.Int64Counter("floorquote_scheduler_job_runs_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) RecordLeadSubmitted(ctx context.Context, brand string) {
	if m == nil {
		return
	}
	m.leadsSubmitted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("brand", brand))...))
}

func (m *Metrics) RecordVerification(ctx context.Context, channel, outcome string) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome),
	)...))
}

// RecordSettlement counts one retailer settlement by how it was paid.
func (m *Metrics) RecordSettlement(ctx context.Context, paidVia, outcome string) {
	if m == nil {
		return
	}
	m.settlements.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("paid_via", paidVia),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordDistributionRun(ctx context.Context, candidates int) {
	if m == nil {
		return
	}
	outcome := "matched"
	if candidates == 0 {
		outcome = "unmatched"
	}
	m.distributions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", provider),
		attribute.String("event_type", eventType),
	)...))
}

func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string) {
	if m == nil {
		return
	}
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"brand":      {},
	"channel":    {},
	"outcome":    {},
	"paid_via":   {},
	"provider":   {},
	"event_type": {},
	"job":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
