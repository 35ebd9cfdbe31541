// Package config provides configuration management for the application.
// This file contains validation functions for configuration values.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/verustcode/stagereport/pkg/errors"
)

// MinJWTSecretLength is the minimum required length for JWT secret (256 bits for HS256)
const MinJWTSecretLength = 32

var validate = validator.New()

// Validate checks struct tags and cross-field rules of the configuration.
// It does not require a JWT secret; see ValidateAuthConfig for the serving path.
func Validate(cfg *BootstrapConfig) *errors.AppError {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid configuration", err).
			WithDetails(validationMessages(err))
	}

	if _, err := cron.ParseStandard(cfg.Recovery.SweepSchedule); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid recovery.sweep_schedule %q", cfg.Recovery.SweepSchedule), err)
	}

	if cfg.Report.Storage.Backend == StorageBackendS3 && strings.TrimSpace(cfg.Report.Storage.S3.Bucket) == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "report.storage.s3.bucket is required for the s3 backend")
	}

	if cfg.Report.Locale != "" {
		if _, err := language.Parse(cfg.Report.Locale); err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid report.locale %q", cfg.Report.Locale), err)
		}
	}

	return nil
}

// ValidateAuthConfig validates the token signing configuration
func ValidateAuthConfig(cfg *AuthConfig) *errors.AppError {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New(errors.ErrCodeJWTSecretInvalid, "auth.jwt_secret cannot be empty")
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return errors.New(errors.ErrCodeJWTSecretInvalid,
			fmt.Sprintf("auth.jwt_secret must be at least %d characters long for security (HS256 requires 256 bits)", MinJWTSecretLength))
	}

	return nil
}

// validationMessages flattens validator errors into field -> rule
func validationMessages(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["config"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Namespace()] = rule
	}
	return out
}
