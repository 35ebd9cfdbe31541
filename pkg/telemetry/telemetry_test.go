package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func shutdown(t *testing.T, telem *Telemetry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telem.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() returned error: %v", err)
	}
}

// pipelineAttrs mirrors what serve passes for a two worker local deployment
func pipelineAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("report.workers", 2),
		attribute.Int("report.queue_size", 64),
		attribute.String("report.storage_backend", "local"),
	}
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	return string(body)
}

func TestNewTelemetryDisabled(t *testing.T) {
	telem, err := New(Config{Enabled: false}, pipelineAttrs()...)
	if err != nil {
		t.Fatalf("New() with disabled config returned error: %v", err)
	}
	if telem.IsEnabled() {
		t.Error("IsEnabled() returned true for disabled telemetry")
	}
	if telem.MetricsHandler() != nil {
		t.Error("MetricsHandler() should be nil when telemetry is disabled")
	}
	if telem.MeterProvider() != nil {
		t.Error("MeterProvider() should be nil when telemetry is disabled")
	}
	shutdown(t, telem)
}

func TestMetricsHandler_NilTelemetry(t *testing.T) {
	var telem *Telemetry
	if telem.MetricsHandler() != nil {
		t.Error("MetricsHandler() on nil Telemetry should be nil")
	}
}

func TestNewTelemetry_ResourceAttributes(t *testing.T) {
	telem, err := New(Config{
		Enabled:     true,
		Environment: "staging",
		InstanceID:  "report-node-1",
	}, pipelineAttrs()...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer shutdown(t, telem)

	if telem.config.ServiceName != "stagereport" {
		t.Errorf("ServiceName = %q, want the default stagereport", telem.config.ServiceName)
	}

	want := map[string]string{
		"service.name":           "stagereport",
		AttrInstanceID:           "report-node-1",
		AttrEnvironment:          "staging",
		"report.workers":         "2",
		"report.queue_size":      "64",
		"report.storage_backend": "local",
	}
	got := make(map[string]string)
	for _, kv := range telem.resource.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("resource[%s] = %q, want %q", k, got[k], v)
		}
	}

	// Prometheus is off, nothing to scrape
	if telem.MetricsHandler() != nil {
		t.Error("MetricsHandler() should be nil without Prometheus")
	}
}

func TestNewTelemetry_DefaultInstanceID(t *testing.T) {
	telem, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer shutdown(t, telem)

	if telem.config.InstanceID == "" {
		t.Fatal("InstanceID should default to a non-empty value")
	}
	if host, err := os.Hostname(); err == nil && host != "" && telem.config.InstanceID != host {
		t.Errorf("InstanceID = %q, want hostname %q", telem.config.InstanceID, host)
	}
}

func TestPrometheus_ScrapeReportMetrics(t *testing.T) {
	telem, err := New(Config{
		Enabled:     true,
		Environment: "test",
		Prometheus:  PrometheusConfig{Enabled: true},
	}, pipelineAttrs()...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer shutdown(t, telem)

	if telem.metricsServer != nil {
		t.Error("Port 0 should not start a dedicated metrics server")
	}

	m, err := NewMetrics(telem.MeterProvider().Meter(MeterName))
	if err != nil {
		t.Fatalf("NewMetrics() returned error: %v", err)
	}
	ctx := context.Background()
	m.RecordReportRequested(ctx, "SpreadsheetKpi")
	m.RecordGenerationStarted(ctx)
	m.RecordGenerationFinished(ctx, "SpreadsheetKpi", "Complete", 0.3)

	handler := telem.MetricsHandler()
	if handler == nil {
		t.Fatal("MetricsHandler() should be set when Prometheus is enabled")
	}
	body := scrape(t, handler)

	for _, want := range []string{
		"stagereport_report_requests",
		`report_type="SpreadsheetKpi"`,
		"stagereport_report_generation_duration_seconds",
		"target_info",
		`report_workers="2"`,
		`report_storage_backend="local"`,
		`deployment_environment="test"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestPrometheus_SecondInstanceDoesNotCollide(t *testing.T) {
	cfg := Config{Enabled: true, Prometheus: PrometheusConfig{Enabled: true}}

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("first New() returned error: %v", err)
	}
	defer shutdown(t, first)

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("second New() returned error: %v", err)
	}
	defer shutdown(t, second)
}

func TestPrometheus_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, err = New(Config{
		Enabled:    true,
		Prometheus: PrometheusConfig{Enabled: true, Port: port},
	})
	if err == nil {
		t.Fatal("New() should fail when the metrics port is taken")
	}
}

func TestPrometheus_DedicatedPort(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	telem, err := New(Config{
		Enabled:    true,
		Prometheus: PrometheusConfig{Enabled: true, Port: port},
	})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer shutdown(t, telem)

	if telem.metricsServer == nil {
		t.Fatal("a positive port should start the metrics server")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		telem := &Telemetry{config: Config{OTLP: OTLPConfig{SampleRatio: tt.ratio}}}
		desc := telem.sampler().Description()
		if !strings.Contains(desc, "ParentBased") || !strings.Contains(desc, tt.want) {
			t.Errorf("sampler(%v) = %q, want ParentBased with %s", tt.ratio, desc, tt.want)
		}
	}
}
