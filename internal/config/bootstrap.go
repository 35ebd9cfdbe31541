// Package config provides configuration management for the application.
// This file handles bootstrap configuration which requires server restart to take effect.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// BootstrapConfig holds the complete application configuration.
// Every value here requires a restart to take effect.
type BootstrapConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      logger.Config      `yaml:"logging"`
	Telemetry    telemetry.Config   `yaml:"telemetry"`
	Report       ReportConfig       `yaml:"report"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
	Notification NotificationConfig `yaml:"notification"`
}

// BootstrapConfigPath is the default path for bootstrap configuration
const BootstrapConfigPath = "config/bootstrap.yaml"

// DotEnvPath is the optional environment file loaded before the bootstrap config
const DotEnvPath = ".env"

// DefaultBootstrapConfig returns default bootstrap configuration
func DefaultBootstrapConfig() *BootstrapConfig {
	return &BootstrapConfig{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8093,
			Debug: false,

			GenerateRateLimit: defaultGenerateRateLimit,
		},
		Auth: AuthConfig{
			JWTSecret:   "",
			TokenExpiry: defaultTokenExpiry,
		},
		Database: DatabaseConfig{
			Path: "./data/stagereport.db",
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   false,
			AccessLog:  false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:     false,
				Endpoint:    defaultOTLPEndpoint,
				Insecure:    true,
				SampleRatio: 1,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    0,
			},
		},
		Report: ReportConfig{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
			Locale:    defaultLocale,
			Storage: StorageConfig{
				Backend: StorageBackendLocal,
				Local:   LocalStorageConfig{Dir: defaultStorageDir},
			},
		},
		Recovery: RecoveryConfig{
			TaskTimeoutMinutes: defaultTaskTimeoutMinutes,
			SweepSchedule:      defaultSweepSchedule,
			LogRetentionDays:   defaultLogRetentionDays,
		},
		Notification: NotificationConfig{
			TimeoutSeconds: defaultNotifyTimeout,
			Inbox:          InboxConfig{Enabled: true},
			WebSocket:      WebSocketConfig{Enabled: true},
			Redis:          RedisConfig{Channel: "stagereport:notifications"},
		},
	}
}

// LoadBootstrap loads bootstrap configuration from file with environment variable support.
// A .env file next to the working directory is loaded first when present; variables
// already set in the process environment win.
// Environment variables can override values using SR_ prefix:
//   - SR_SERVER_HOST, SR_SERVER_PORT, SR_SERVER_DEBUG
//   - SR_DATABASE_PATH, SR_JWT_SECRET
//   - SR_LOG_LEVEL, SR_LOG_FORMAT, SR_LOG_FILE
//   - SR_REPORT_WORKERS, SR_STORAGE_BACKEND, SR_STORAGE_DIR, SR_S3_BUCKET
//   - SR_RECOVERY_SHARED_STORE
//   - SR_REDIS_ADDR, SR_WEBHOOK_URL
func LoadBootstrap(path string) (*BootstrapConfig, error) {
	if err := loadDotEnv(DotEnvPath); err != nil {
		return nil, err
	}

	cfg := DefaultBootstrapConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap config: %w", err)
	}

	applyBootstrapEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv loads variables from an env file if it exists
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// BootstrapExists checks if bootstrap configuration file exists
func BootstrapExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteBootstrap writes bootstrap configuration to file
func WriteBootstrap(path string, cfg *BootstrapConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal bootstrap config: %w", err)
	}

	content := bootstrapHeader + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write bootstrap config: %w", err)
	}

	return nil
}

// bootstrapHeader is the comment header for bootstrap.yaml
const bootstrapHeader = `# StageReport Bootstrap Configuration
# All settings require a server restart to take effect.
#
# Environment Variable Support:
#   - Use ${VAR_NAME} syntax in values to reference environment variables
#   - Variables may also come from a .env file in the working directory
#   - Or use SR_* prefix environment variables to override:
#     SR_SERVER_HOST, SR_SERVER_PORT, SR_SERVER_DEBUG
#     SR_DATABASE_PATH, SR_JWT_SECRET
#     SR_LOG_LEVEL, SR_LOG_FORMAT
#

`

// applyBootstrapEnvOverrides applies environment variable overrides to bootstrap config
func applyBootstrapEnvOverrides(cfg *BootstrapConfig) {
	// Server overrides
	if v := os.Getenv("SR_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SR_SERVER_DEBUG"); v != "" {
		cfg.Server.Debug = parseBool(v)
	}

	if v := os.Getenv("SR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SR_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Logging overrides
	if v := os.Getenv("SR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SR_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Report overrides
	if v := os.Getenv("SR_REPORT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Report.Workers = n
		}
	}
	if v := os.Getenv("SR_STORAGE_BACKEND"); v != "" {
		cfg.Report.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SR_STORAGE_DIR"); v != "" {
		cfg.Report.Storage.Local.Dir = v
	}
	if v := os.Getenv("SR_S3_BUCKET"); v != "" {
		cfg.Report.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SR_S3_ENDPOINT"); v != "" {
		cfg.Report.Storage.S3.Endpoint = v
	}

	if v := os.Getenv("SR_RECOVERY_SHARED_STORE"); v != "" {
		cfg.Recovery.SharedStore = parseBool(v)
	}

	// Notification overrides
	if v := os.Getenv("SR_REDIS_ADDR"); v != "" {
		cfg.Notification.Redis.Addr = v
		cfg.Notification.Redis.Enabled = true
	}
	if v := os.Getenv("SR_WEBHOOK_URL"); v != "" {
		cfg.Notification.Webhook.URL = v
	}

	// Telemetry overrides
	if v := os.Getenv("SR_TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("SR_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLP.Endpoint = v
		cfg.Telemetry.OTLP.Enabled = true
	}
	if v := os.Getenv("SR_ENVIRONMENT"); v != "" {
		cfg.Telemetry.Environment = v
	}
	if v := os.Getenv("SR_INSTANCE_ID"); v != "" {
		cfg.Telemetry.InstanceID = v
	}
	if v := os.Getenv("SR_PROMETHEUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.Prometheus.Port = port
		}
	}
}

// parseBool parses a boolean string value
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}
