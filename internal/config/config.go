// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Default configuration values
const (
	defaultWorkers            = 2
	defaultQueueSize          = 64
	defaultLocale             = "en"
	defaultStorageDir         = "./data/reports"
	defaultOTLPEndpoint       = "localhost:4317"
	defaultTaskTimeoutMinutes = 30
	defaultSweepSchedule      = "@every 5m"
	defaultLogRetentionDays   = 30
	defaultNotifyTimeout      = 5
	defaultTokenExpiry        = 24
	defaultGenerateRateLimit  = 30
)

// Storage backends
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host" validate:"required"`
	Port        int      `yaml:"port" validate:"min=1,max=65535"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins whitelist
	// GenerateRateLimit caps generation requests per user and minute, 0 disables the limit
	GenerateRateLimit int `yaml:"generate_rate_limit" validate:"min=0"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`   // JWT signing secret key
	TokenExpiry int    `yaml:"token_expiry"` // Token expiry in hours (default: 24)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	Workers        int           `yaml:"workers" validate:"min=1,max=64"` // Concurrent generation units
	QueueSize      int           `yaml:"queue_size" validate:"min=1"`     // Pending units waiting for a worker
	Locale         string        `yaml:"locale"`                          // Locale of rendered documents (BCP 47, e.g. en, de-DE)
	City           string        `yaml:"city"`                            // City printed on certificates
	PDFCompression *bool         `yaml:"pdf_compression,omitempty"`       // Compress PDF streams (default: true)
	Storage        StorageConfig `yaml:"storage"`
}

// CompressPDF reports whether PDF streams should be compressed
func (c *ReportConfig) CompressPDF() bool {
	return c.PDFCompression == nil || *c.PDFCompression
}

// StorageConfig selects and configures the artifact content store
type StorageConfig struct {
	Backend string             `yaml:"backend" validate:"oneof=local s3"`
	Local   LocalStorageConfig `yaml:"local"`
	S3      S3StorageConfig    `yaml:"s3"`
}

// LocalStorageConfig holds filesystem storage settings
type LocalStorageConfig struct {
	Dir string `yaml:"dir"`
}

// S3StorageConfig holds S3-compatible storage settings
type S3StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`       // Custom endpoint (MinIO, LocalStack)
	UsePathStyle    bool   `yaml:"use_path_style"` // Required by most S3-compatible servers
	AccessKeyID     string `yaml:"access_key_id"`  // Empty uses the default credential chain
	SecretAccessKey string `yaml:"secret_access_key"`
}

// RecoveryConfig holds report recovery configuration
type RecoveryConfig struct {
	TaskTimeoutMinutes int    `yaml:"task_timeout_minutes" validate:"min=1"` // InProgress older than this is failed
	SweepSchedule      string `yaml:"sweep_schedule" validate:"required"`    // cron spec for the stuck-report sweep
	LogRetentionDays   int    `yaml:"log_retention_days" validate:"min=0"`   // 0 keeps report logs forever
	// SharedStore is set when several instances use one database. Startup then
	// fails only InProgress reports older than the task timeout, since younger
	// ones may belong to a live instance.
	SharedStore bool `yaml:"shared_store"`
}

// NotificationConfig holds notification configuration
type NotificationConfig struct {
	// TimeoutSeconds bounds every single notification call
	TimeoutSeconds int             `yaml:"timeout_seconds" validate:"min=1"`
	Inbox          InboxConfig     `yaml:"inbox"`
	WebSocket      WebSocketConfig `yaml:"websocket"`
	Webhook        WebhookConfig   `yaml:"webhook"`
	Redis          RedisConfig     `yaml:"redis"`
}

// InboxConfig controls the persisted in-app notifications
type InboxConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WebSocketConfig controls live push to connected clients
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Empty allows any origin
}

// WebhookConfig holds webhook notification settings
type WebhookConfig struct {
	// URL is the webhook endpoint URL, empty disables the channel
	URL string `yaml:"url" validate:"omitempty,url"`
	// Secret is optional, used for HMAC signature verification
	Secret string `yaml:"secret"`
	// Events filters which events are delivered, empty means all
	Events []string `yaml:"events"`
}

// RedisConfig enables cross-instance fan-out of push messages
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// IsEnabled returns true if the webhook channel is configured
func (c *WebhookConfig) IsEnabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// HasEvent returns true if the event passes the webhook filter
func (c *WebhookConfig) HasEvent(event string) bool {
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
// Only matches ${VAR_NAME} format (not $VAR_NAME) so secrets containing '$' survive
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	})
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
