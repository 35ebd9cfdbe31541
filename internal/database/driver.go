// Package database provides database driver abstraction for extensibility.
package database

import "gorm.io/gorm"

// Driver defines the database driver interface for supporting multiple databases
type Driver interface {
	// Name returns the driver name (e.g., "sqlite", "postgres")
	Name() string

	// Open opens a database connection and returns a GORM dialector
	Open(dsn string) (gorm.Dialector, error)

	// PreMigrationConfig applies connection pool and journal settings before migration.
	// Foreign key constraints must not be enabled here.
	PreMigrationConfig(db *gorm.DB) error

	// PostMigrationConfig applies settings that need the final schema (foreign keys)
	PostMigrationConfig(db *gorm.DB) error
}
