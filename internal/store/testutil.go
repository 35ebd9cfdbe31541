// Package store provides test utilities for database testing.
package store

import (
	"os"
	"testing"
	"time"

	"github.com/verustcode/stagereport/internal/database"
	"github.com/verustcode/stagereport/internal/model"
)

// SetupTestDB creates a temporary SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	t.Helper()

	// Reset database state to allow re-initialization
	database.ResetForTesting()

	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	store := NewStore(database.Get())

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
		os.Remove(tmpPath + "-wal")
		os.Remove(tmpPath + "-shm")
	}

	return store, cleanup
}

// CreateTestUser creates a test User with default values.
// Fields can be overridden by passing a function that modifies the user.
func CreateTestUser(t *testing.T, store Store, overrides ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Username: "user-" + time.Now().Format("150405.000000000"),
		FullName: "Ivan Petrov",
		Role:     model.UserRoleSpecialist,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := store.User().Create(user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestProject creates a test Project owned by createdBy.
func CreateTestProject(t *testing.T, store Store, createdBy uint, overrides ...func(*model.Project)) *model.Project {
	t.Helper()

	project := &model.Project{
		Name:            "Bridge Repair",
		Description:     "Repair of the river bridge deck",
		Budget:          500000,
		StartDate:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:          model.ProjectStatusActive,
		CreatedByUserID: createdBy,
	}

	for _, override := range overrides {
		override(project)
	}

	if err := store.Project().Create(project); err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return project
}

// CreateTestStage creates a test Stage in the given project.
func CreateTestStage(t *testing.T, store Store, projectID uint, overrides ...func(*model.Stage)) *model.Stage {
	t.Helper()

	deadline := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	stage := &model.Stage{
		ProjectID:       projectID,
		Name:            "Foundation",
		StageType:       model.StageTypeInstallation,
		Status:          model.StageStatusInProgress,
		ProgressPercent: 50,
		Deadline:        &deadline,
	}

	for _, override := range overrides {
		override(stage)
	}

	if err := store.Project().UpsertStage(stage); err != nil {
		t.Fatalf("Failed to create test stage: %v", err)
	}
	return stage
}

// CreateTestReport creates a Pending test Report for the given project and user.
func CreateTestReport(t *testing.T, store Store, projectID, userID uint, overrides ...func(*model.Report)) *model.Report {
	t.Helper()

	report := &model.Report{
		ProjectID:         projectID,
		ReportType:        model.ReportTypeCertificate,
		Status:            model.ReportStatusPending,
		GeneratedAt:       time.Now().UTC(),
		GeneratedByUserID: userID,
		ReportConfig: model.JSONMap{
			"includeProgress": true,
			"includeDeadline": true,
		},
	}

	for _, override := range overrides {
		override(report)
	}

	if err := store.Report().Create(report); err != nil {
		t.Fatalf("Failed to create test report: %v", err)
	}
	return report
}
