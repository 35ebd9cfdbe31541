// Package contentstore persists rendered report artifacts.
// Artifacts are addressed by a relative name (the report file name) and are
// written once, then read back for downloads.
package contentstore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/pkg/errors"
)

// Store is a write-once blob store for report artifacts.
type Store interface {
	// Write stores data under name, replacing any previous content.
	Write(ctx context.Context, name string, data []byte) error
	// Read returns the content stored under name.
	// A missing object yields an AppError with ErrCodeStorageNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Exists reports whether name is present.
	Exists(ctx context.Context, name string) (bool, error)
	// Backend names the implementation for logs and metrics.
	Backend() string
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StorageBackendLocal:
		return NewLocalStore(cfg.Local.Dir)
	case config.StorageBackendS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}

func errNotFound(name string) error {
	return errors.New(errors.ErrCodeStorageNotFound, fmt.Sprintf("stored file %s not found", name))
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.HasCode(err, errors.ErrCodeStorageNotFound)
}

// ContentTypeFor guesses the object content type from the artifact extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return consts.ContentTypePDF
	case ".xlsx":
		return consts.ContentTypeSpreadsheet
	default:
		return consts.ContentTypeBinary
	}
}
