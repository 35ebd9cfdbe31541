// Package telemetry wires OpenTelemetry traces and metrics for the report service.
// Traces go to an OTLP collector; metrics are scraped in Prometheus format from
// the API router and, optionally, from a dedicated port.
package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/pkg/idgen"
	"github.com/verustcode/stagereport/pkg/logger"
)

const (
	exporterTimeout    = 10 * time.Second
	metricsHTTPTimeout = 10 * time.Second
)

// Resource attribute keys shared by every instance of the service
const (
	AttrEnvironment = "deployment.environment"
	AttrInstanceID  = "service.instance.id"
)

// Config holds the telemetry configuration
type Config struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Environment is attached to every span and metric (production, staging, ...)
	Environment string `yaml:"environment"`
	// InstanceID tells instances sharing one Redis channel apart. Defaults to the hostname.
	InstanceID string           `yaml:"instance_id"`
	OTLP       OTLPConfig       `yaml:"otlp"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// OTLPConfig holds OTLP trace exporter configuration
type OTLPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g. "localhost:4317"
	Insecure bool   `yaml:"insecure"`
	// SampleRatio is the fraction of root traces kept; 0 keeps all
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// PrometheusConfig holds Prometheus metrics configuration.
// With Port 0 metrics are only served on the API router at /metrics.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"gte=0,lte=65535"`
}

// Telemetry owns the providers and the metrics endpoint
type Telemetry struct {
	config         Config
	resource       *resource.Resource
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *promclient.Registry
	metricsServer  *http.Server
}

// New creates the providers and installs them globally. attrs describe the
// running pipeline (worker count, storage backend) and land on every signal.
func New(cfg Config, attrs ...attribute.KeyValue) (*Telemetry, error) {
	if !cfg.Enabled {
		logger.Info("Telemetry is disabled")
		return &Telemetry{config: cfg}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = consts.ServiceName
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
	}

	res, err := newResource(cfg, attrs)
	if err != nil {
		return nil, err
	}
	t := &Telemetry{config: cfg, resource: res}

	if err := t.initTracerProvider(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	if err := t.initMeterProvider(); err != nil {
		t.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		zap.String("service_name", cfg.ServiceName),
		zap.String("instance_id", cfg.InstanceID),
		zap.String("environment", cfg.Environment),
		zap.Bool("otlp_enabled", cfg.OTLP.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)
	return t, nil
}

// newResource builds the resource. resource.New avoids schema URL conflicts
// between semconv versions.
func newResource(cfg Config, attrs []attribute.KeyValue) (*resource.Resource, error) {
	all := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(consts.Version),
		attribute.String(AttrInstanceID, cfg.InstanceID),
	}
	if cfg.Environment != "" {
		all = append(all, attribute.String(AttrEnvironment, cfg.Environment))
	}
	all = append(all, attrs...)

	res, err := resource.New(context.Background(), resource.WithAttributes(all...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return idgen.NewID()
}

// sampler keeps the parent's decision and samples new roots at the configured ratio
func (t *Telemetry) sampler() sdktrace.Sampler {
	ratio := t.config.OTLP.SampleRatio
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func (t *Telemetry) initTracerProvider() error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(t.resource),
		sdktrace.WithSampler(t.sampler()),
	}

	if t.config.OTLP.Enabled && t.config.OTLP.Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
		defer cancel()

		exporterOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(t.config.OTLP.Endpoint),
		}
		if t.config.OTLP.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("OTLP trace exporter initialized", zap.String("endpoint", t.config.OTLP.Endpoint))
	}

	t.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(t.tracerProvider)
	return nil
}

func (t *Telemetry) initMeterProvider() error {
	opts := []sdkmetric.Option{sdkmetric.WithResource(t.resource)}

	if t.config.Prometheus.Enabled {
		// a private registry so a second New in the same process does not collide
		t.registry = promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(t.registry))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exporter))

		if t.config.Prometheus.Port > 0 {
			if err := t.startMetricsServer(); err != nil {
				return err
			}
		}
	}

	t.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(t.meterProvider)
	return nil
}

// startMetricsServer binds synchronously so a taken port fails startup
func (t *Telemetry) startMetricsServer() error {
	addr := fmt.Sprintf(":%d", t.config.Prometheus.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", t.MetricsHandler())
	t.metricsServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  metricsHTTPTimeout,
		WriteTimeout: metricsHTTPTimeout,
	}

	go func() {
		logger.Info("Starting Prometheus metrics server", zap.String("address", ln.Addr().String()))
		if err := t.metricsServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Prometheus metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// MetricsHandler serves the Prometheus scrape endpoint. It is nil when
// Prometheus export is off, and safe to call on a nil Telemetry.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t == nil || t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// MeterProvider returns the SDK meter provider, nil when disabled
func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider {
	return t.meterProvider
}

// Shutdown flushes pending spans and metrics and stops the metrics server
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.config.Enabled {
		return nil
	}

	logger.Info("Shutting down telemetry")

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown meter provider", zap.Error(err))
		}
	}
	if t.metricsServer != nil {
		if err := t.metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown metrics server", zap.Error(err))
		}
	}
	return nil
}

// IsEnabled returns whether telemetry is enabled
func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled
}
