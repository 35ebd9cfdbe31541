package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/verustcode/stagereport/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "bootstrap.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return configPath
}

// TestDefaultBootstrapConfig tests the DefaultBootstrapConfig function
func TestDefaultBootstrapConfig(t *testing.T) {
	cfg := DefaultBootstrapConfig()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %v, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8093 {
		t.Errorf("Server.Port = %v, want 8093", cfg.Server.Port)
	}
	if cfg.Database.Path != "./data/stagereport.db" {
		t.Errorf("Database.Path = %v, want ./data/stagereport.db", cfg.Database.Path)
	}
	if cfg.Report.Workers != defaultWorkers {
		t.Errorf("Report.Workers = %d, want %d", cfg.Report.Workers, defaultWorkers)
	}
	if cfg.Report.Storage.Backend != StorageBackendLocal {
		t.Errorf("Report.Storage.Backend = %q, want local", cfg.Report.Storage.Backend)
	}
	if !cfg.Report.CompressPDF() {
		t.Error("PDF compression should default to true")
	}
	if cfg.Recovery.TaskTimeoutMinutes != defaultTaskTimeoutMinutes {
		t.Errorf("Recovery.TaskTimeoutMinutes = %d", cfg.Recovery.TaskTimeoutMinutes)
	}
	if cfg.Recovery.SharedStore {
		t.Error("Recovery.SharedStore should default to false")
	}
	if !cfg.Notification.Inbox.Enabled {
		t.Error("inbox notifications should be enabled by default")
	}
	if cfg.Telemetry.ServiceName != "stagereport" {
		t.Errorf("Telemetry.ServiceName = %v, want stagereport", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.OTLP.SampleRatio != 1 || cfg.Telemetry.Prometheus.Port != 0 {
		t.Errorf("Telemetry = %+v, want sample ratio 1 and metrics on the API port", cfg.Telemetry)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

// TestLoadBootstrap tests loading bootstrap configuration from file
func TestLoadBootstrap(t *testing.T) {
	configPath := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  debug: true

database:
  path: "./test/db.sqlite"

auth:
  jwt_secret: "test-secret-key-must-be-at-least-32-characters-long"

report:
  workers: 4
  queue_size: 10
  locale: de-DE
  city: Berlin
  pdf_compression: false
  storage:
    backend: s3
    s3:
      bucket: reports
      endpoint: http://localhost:9000
      use_path_style: true

notification:
  timeout_seconds: 2
  webhook:
    url: https://hooks.example.com/reports
    events: [report.completed]

logging:
  level: debug
  format: json
`)

	cfg, err := LoadBootstrap(configPath)
	if err != nil {
		t.Fatalf("LoadBootstrap() unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || !cfg.Server.Debug {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Path != "./test/db.sqlite" {
		t.Errorf("Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Report.Workers != 4 || cfg.Report.QueueSize != 10 {
		t.Errorf("Report pool = %d/%d, want 4/10", cfg.Report.Workers, cfg.Report.QueueSize)
	}
	if cfg.Report.City != "Berlin" {
		t.Errorf("Report.City = %q", cfg.Report.City)
	}
	if cfg.Report.CompressPDF() {
		t.Error("pdf_compression: false should disable compression")
	}
	if cfg.Report.Storage.Backend != StorageBackendS3 || !cfg.Report.Storage.S3.UsePathStyle {
		t.Errorf("Storage = %+v", cfg.Report.Storage)
	}
	if !cfg.Notification.Webhook.IsEnabled() {
		t.Error("webhook should be enabled")
	}
	if cfg.Notification.Webhook.HasEvent("report.started") {
		t.Error("webhook filter should drop report.started")
	}
	// Sections absent from the file keep their defaults
	if cfg.Recovery.SweepSchedule != defaultSweepSchedule {
		t.Errorf("Recovery.SweepSchedule = %q", cfg.Recovery.SweepSchedule)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

// TestLoadBootstrap_EnvVarExpansion tests ${VAR} expansion
func TestLoadBootstrap_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/var/lib/stagereport/test.db")

	configPath := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
report:
  city: ${TEST_REPORT_CITY:-Springfield}
`)

	cfg, err := LoadBootstrap(configPath)
	if err != nil {
		t.Fatalf("LoadBootstrap() unexpected error: %v", err)
	}

	if cfg.Database.Path != "/var/lib/stagereport/test.db" {
		t.Errorf("Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Report.City != "Springfield" {
		t.Errorf("Report.City = %q, want default Springfield", cfg.Report.City)
	}
}

// TestLoadBootstrap_EnvVarOverrides tests SR_* overrides
func TestLoadBootstrap_EnvVarOverrides(t *testing.T) {
	t.Setenv("SR_SERVER_HOST", "192.168.1.100")
	t.Setenv("SR_SERVER_PORT", "9999")
	t.Setenv("SR_SERVER_DEBUG", "yes")
	t.Setenv("SR_DATABASE_PATH", "/override/path.db")
	t.Setenv("SR_LOG_LEVEL", "error")
	t.Setenv("SR_REPORT_WORKERS", "7")
	t.Setenv("SR_REDIS_ADDR", "localhost:6379")
	t.Setenv("SR_ENVIRONMENT", "staging")
	t.Setenv("SR_INSTANCE_ID", "node-2")
	t.Setenv("SR_RECOVERY_SHARED_STORE", "true")

	configPath := writeConfig(t, `
server:
  host: "0.0.0.0"
  port: 8080
database:
  path: "./default.db"
`)

	cfg, err := LoadBootstrap(configPath)
	if err != nil {
		t.Fatalf("LoadBootstrap() unexpected error: %v", err)
	}

	if cfg.Server.Host != "192.168.1.100" {
		t.Errorf("Server.Host = %v, want 192.168.1.100 (from env)", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %v, want 9999 (from env)", cfg.Server.Port)
	}
	if !cfg.Server.Debug {
		t.Error("Server.Debug should be true (from env)")
	}
	if cfg.Database.Path != "/override/path.db" {
		t.Errorf("Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %v", cfg.Logging.Level)
	}
	if cfg.Report.Workers != 7 {
		t.Errorf("Report.Workers = %d, want 7", cfg.Report.Workers)
	}
	if !cfg.Notification.Redis.Enabled || cfg.Notification.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis = %+v", cfg.Notification.Redis)
	}
	if cfg.Telemetry.Environment != "staging" || cfg.Telemetry.InstanceID != "node-2" {
		t.Errorf("Telemetry = %+v, want environment staging and instance node-2", cfg.Telemetry)
	}
	if !cfg.Recovery.SharedStore {
		t.Error("SR_RECOVERY_SHARED_STORE should enable Recovery.SharedStore")
	}
}

func TestLoadBootstrap_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadBootstrap(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := LoadBootstrap(writeConfig(t, "server: [unclosed")); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := LoadBootstrap(writeConfig(t, `
report:
  workers: 0
`))
		if !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
			t.Errorf("err = %v, want %s", err, errors.ErrCodeConfigInvalid)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("SR_TEST_DOTENV_VALUE=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SR_TEST_DOTENV_VALUE", "")
	os.Unsetenv("SR_TEST_DOTENV_VALUE")

	if err := loadDotEnv(envPath); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SR_TEST_DOTENV_VALUE"); got != "from-dotenv" {
		t.Errorf("SR_TEST_DOTENV_VALUE = %q", got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestWriteBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	cfg := DefaultBootstrapConfig()
	cfg.Report.City = "Oslo"

	if err := WriteBootstrap(path, cfg); err != nil {
		t.Fatalf("WriteBootstrap() error = %v", err)
	}
	if !BootstrapExists(path) {
		t.Fatal("BootstrapExists() = false after write")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded BootstrapConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("written file is not valid yaml: %v", err)
	}
	if loaded.Report.City != "Oslo" {
		t.Errorf("Report.City = %q, want Oslo", loaded.Report.City)
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", " on "} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"false", "0", "", "nope"} {
		if parseBool(v) {
			t.Errorf("parseBool(%q) = true", v)
		}
	}
}
