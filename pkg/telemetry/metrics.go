// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/pkg/logger"
)

const (
	// MeterName is the default meter name for the application
	MeterName = "github.com/verustcode/stagereport"
)

// Metrics holds all application metrics
type Metrics struct {
	// Report metrics
	ReportRequestsTotal    metric.Int64Counter
	ReportGenerationsTotal metric.Int64Counter
	ReportDuration         metric.Float64Histogram
	ActiveGenerations      metric.Int64UpDownCounter
	ReportQueueDepth       metric.Int64UpDownCounter

	// Notification metrics
	NotificationsTotal metric.Int64Counter

	// Content store metrics
	StorageWritesTotal metric.Int64Counter
	StorageBytesTotal  metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = NewMetrics(otel.Meter(MeterName))
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// NewMetrics creates all instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ReportRequestsTotal, err = meter.Int64Counter(
		"stagereport_report_requests_total",
		metric.WithDescription("Total number of accepted report generation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReportGenerationsTotal, err = meter.Int64Counter(
		"stagereport_report_generations_total",
		metric.WithDescription("Total number of finished report generations by outcome"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReportDuration, err = meter.Float64Histogram(
		"stagereport_report_generation_duration_seconds",
		metric.WithDescription("Duration of report generation in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveGenerations, err = meter.Int64UpDownCounter(
		"stagereport_active_generations",
		metric.WithDescription("Number of reports currently being generated"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReportQueueDepth, err = meter.Int64UpDownCounter(
		"stagereport_report_queue_depth",
		metric.WithDescription("Number of reports waiting for a worker"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.NotificationsTotal, err = meter.Int64Counter(
		"stagereport_notifications_total",
		metric.WithDescription("Total number of notification deliveries by channel and result"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	m.StorageWritesTotal, err = meter.Int64Counter(
		"stagereport_storage_writes_total",
		metric.WithDescription("Total number of artifact writes to the content store"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	m.StorageBytesTotal, err = meter.Int64Counter(
		"stagereport_storage_bytes_total",
		metric.WithDescription("Total bytes written to the content store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"stagereport_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"stagereport_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordReportRequested records an accepted generation request
func (m *Metrics) RecordReportRequested(ctx context.Context, reportType string) {
	if m.ReportRequestsTotal == nil {
		return
	}
	m.ReportRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("report_type", reportType)),
	)
}

// RecordQueueDelta adjusts the queue depth gauge
func (m *Metrics) RecordQueueDelta(ctx context.Context, delta int64) {
	if m.ReportQueueDepth == nil {
		return
	}
	m.ReportQueueDepth.Add(ctx, delta)
}

// RecordGenerationStarted records that a worker picked up a report
func (m *Metrics) RecordGenerationStarted(ctx context.Context) {
	if m.ActiveGenerations != nil {
		m.ActiveGenerations.Add(ctx, 1)
	}
}

// RecordGenerationFinished records the outcome of a generation
func (m *Metrics) RecordGenerationFinished(ctx context.Context, reportType, status string, durationSeconds float64) {
	if m.ActiveGenerations != nil {
		m.ActiveGenerations.Add(ctx, -1)
	}
	attrs := metric.WithAttributes(
		attribute.String("report_type", reportType),
		attribute.String("status", status),
	)
	if m.ReportGenerationsTotal != nil {
		m.ReportGenerationsTotal.Add(ctx, 1, attrs)
	}
	if m.ReportDuration != nil {
		m.ReportDuration.Record(ctx, durationSeconds, attrs)
	}
}

// RecordNotification records one delivery attempt on a channel
func (m *Metrics) RecordNotification(ctx context.Context, channel string, success bool) {
	if m.NotificationsTotal == nil {
		return
	}
	m.NotificationsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.Bool("success", success),
		),
	)
}

// RecordStorageWrite records an artifact write
func (m *Metrics) RecordStorageWrite(ctx context.Context, backend string, size int, success bool) {
	if m.StorageWritesTotal != nil {
		m.StorageWritesTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("backend", backend),
				attribute.Bool("success", success),
			),
		)
	}
	if success && m.StorageBytesTotal != nil {
		m.StorageBytesTotal.Add(ctx, int64(size),
			metric.WithAttributes(attribute.String("backend", backend)),
		)
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.Int("status_code", statusCode),
			),
		)
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
			),
		)
	}
}
