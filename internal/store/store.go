// Package store provides data access layer interfaces and implementations.
// This package abstracts database operations to improve maintainability
// and decouple business logic from specific database implementations.
package store

import (
	"context"

	"gorm.io/gorm"
)

// Store aggregates all data store interfaces.
// It provides a single point of access for all database operations.
type Store interface {
	User() UserStore
	Project() ProjectStore
	Report() ReportStore
	Notification() NotificationStore
	ReportLog() ReportLogStore

	// DB returns the underlying database connection for advanced operations.
	// Use sparingly - prefer using specific store methods.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error

	// WithContext returns a Store whose queries are bound to ctx.
	// Background work derives its own handle instead of reusing a request-scoped one.
	WithContext(ctx context.Context) Store
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db                *gorm.DB
	userStore         UserStore
	projectStore      ProjectStore
	reportStore       ReportStore
	notificationStore NotificationStore
	reportLogStore    ReportLogStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:                db,
		userStore:         newUserStore(db),
		projectStore:      newProjectStore(db),
		reportStore:       newReportStore(db),
		notificationStore: newNotificationStore(db),
		reportLogStore:    NewReportLogStore(db),
	}
}

func (s *gormStore) User() UserStore {
	return s.userStore
}

func (s *gormStore) Project() ProjectStore {
	return s.projectStore
}

func (s *gormStore) Report() ReportStore {
	return s.reportStore
}

func (s *gormStore) Notification() NotificationStore {
	return s.notificationStore
}

func (s *gormStore) ReportLog() ReportLogStore {
	return s.reportLogStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *gormStore) WithContext(ctx context.Context) Store {
	return NewStore(s.db.WithContext(ctx))
}
