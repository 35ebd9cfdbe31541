package check

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/contentstore"
	"github.com/verustcode/stagereport/internal/seed"
)

// storageProbeName is looked up (never written) to prove the content store answers
const storageProbeName = ".stagereport-check"

// storageProbeTimeout bounds the reachability probe
const storageProbeTimeout = 10 * time.Second

// ValidationKind tells which part of the environment a result covers
type ValidationKind int

const (
	KindBootstrap ValidationKind = iota
	KindAuth
	KindStorage
	KindSeed
)

// ValidationResult represents the result of a config validation
type ValidationResult struct {
	Kind  ValidationKind
	Path  string
	Valid bool
	// Detail is a short summary printed next to a valid result
	Detail   string
	Error    error
	Warnings []string
}

// validateConfigs validates bootstrap.yaml, the auth settings, the content store
// and, when present, the seed file.
func (c *Checker) validateConfigs(ctx context.Context) error {
	bootstrapResult, cfg := c.validateBootstrapYaml()
	c.report.AddValidationResult(bootstrapResult)
	printValidationResult(bootstrapResult)

	if !bootstrapResult.Valid {
		return fmt.Errorf("bootstrap.yaml validation failed: %w", bootstrapResult.Error)
	}

	// a missing secret blocks serve but not the rest of the check
	authResult := validateAuth(cfg)
	c.report.AddValidationResult(authResult)
	printValidationResult(authResult)

	storageResult := c.validateStorage(ctx, cfg)
	c.report.AddValidationResult(storageResult)
	printValidationResult(storageResult)

	if fileExists(c.SeedPath()) {
		seedResult := validateSeedYaml(c.SeedPath())
		c.report.AddValidationResult(seedResult)
		printValidationResult(seedResult)
	}

	return nil
}

// validateBootstrapYaml loads and validates the bootstrap configuration file
func (c *Checker) validateBootstrapYaml() (ValidationResult, *config.BootstrapConfig) {
	path := c.BootstrapPath()
	result := ValidationResult{Kind: KindBootstrap, Path: path}

	if !fileExists(path) {
		result.Valid = false
		result.Error = fmt.Errorf("file does not exist")
		return result, nil
	}

	cfg, err := config.LoadBootstrap(path)
	if err != nil {
		result.Valid = false
		result.Error = fmt.Errorf("format error: %v", err)
		return result, nil
	}

	if cfg.Server.Debug {
		result.Warnings = append(result.Warnings, "server.debug is on; internal errors are returned to clients")
	}
	if !cfg.Notification.Inbox.Enabled && !cfg.Notification.WebSocket.Enabled && !cfg.Notification.Webhook.IsEnabled() {
		result.Warnings = append(result.Warnings, "all notification channels are disabled")
	}
	if cfg.Notification.Redis.Enabled && !cfg.Recovery.SharedStore {
		result.Warnings = append(result.Warnings,
			"notification.redis is on but recovery.shared_store is off; a restart fails reports running on other instances")
	}

	result.Valid = true
	return result, cfg
}

// validateAuth checks the token signing secret
func validateAuth(cfg *config.BootstrapConfig) ValidationResult {
	result := ValidationResult{Kind: KindAuth, Path: "auth.jwt_secret"}
	if err := config.ValidateAuthConfig(&cfg.Auth); err != nil {
		result.Valid = false
		result.Error = err
		return result
	}
	result.Valid = true
	return result
}

// validateStorage opens the configured content store and issues one lookup
func (c *Checker) validateStorage(ctx context.Context, cfg *config.BootstrapConfig) ValidationResult {
	storageCfg := cfg.Report.Storage
	result := ValidationResult{Kind: KindStorage, Path: "storage:" + storageCfg.Backend}

	ctx, cancel := context.WithTimeout(ctx, storageProbeTimeout)
	defer cancel()

	store, err := contentstore.New(ctx, storageCfg)
	if err != nil {
		result.Valid = false
		result.Error = err
		return result
	}

	if _, err := store.Exists(ctx, storageProbeName); err != nil {
		result.Valid = false
		result.Error = err
		return result
	}

	if local, ok := store.(*contentstore.LocalStore); ok {
		result.Path = "storage:local " + local.Root()
	} else if storageCfg.Backend == config.StorageBackendS3 {
		result.Path = "storage:s3 " + storageCfg.S3.Bucket
		if storageCfg.S3.AccessKeyID == "" {
			result.Warnings = append(result.Warnings, "no static S3 credentials; using the default AWS credential chain")
		}
	}

	result.Valid = true
	return result
}

// validateSeedYaml parses the seed file without touching the database
func validateSeedYaml(path string) ValidationResult {
	result := ValidationResult{Kind: KindSeed, Path: path}

	f, err := seed.Load(path)
	if err != nil {
		result.Valid = false
		result.Error = err
		return result
	}

	stages := 0
	for _, p := range f.Projects {
		stages += len(p.Stages)
	}
	result.Detail = fmt.Sprintf("%d users, %d projects, %d stages", len(f.Users), len(f.Projects), stages)

	result.Valid = true
	return result
}

// printValidationResult prints the validation result
func printValidationResult(result ValidationResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	if result.Valid {
		if result.Detail != "" {
			green.Printf("  ✓ %s (%s)\n", result.Path, result.Detail)
		} else {
			green.Printf("  ✓ %s\n", result.Path)
		}
	} else if result.Error != nil {
		red.Printf("  ✗ %s: %v\n", result.Path, result.Error)
	} else {
		yellow.Printf("  ⚠ %s\n", result.Path)
	}

	for _, warning := range result.Warnings {
		yellow.Printf("    └─ %s\n", warning)
	}
}
