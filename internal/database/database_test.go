package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/pkg/logger"
)

func init() {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
}

func TestSQLiteOptimizations(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitWithPath(dbPath))

	db := Get()

	var journalMode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)

	var synchronous int
	require.NoError(t, db.Raw("PRAGMA synchronous").Scan(&synchronous).Error)
	assert.Equal(t, 1, synchronous)

	var foreignKeys int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrateCreatesAllTables(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	require.NoError(t, InitWithPath(filepath.Join(t.TempDir(), "schema.db")))

	migrator := Get().Migrator()
	for _, m := range model.AllModels() {
		assert.True(t, migrator.HasTable(m), "missing table for %T", m)
	}
}

func TestInitWithPath_OnlyOnce(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	dir := t.TempDir()
	require.NoError(t, InitWithPath(filepath.Join(dir, "first.db")))
	first := Get()

	require.NoError(t, InitWithPath(filepath.Join(dir, "second.db")))
	assert.Same(t, first, Get())
	assert.True(t, IsInitialized())
	assert.NoError(t, HealthCheck())
}

func TestHealthCheck_NotInitialized(t *testing.T) {
	ResetForTesting()
	assert.Error(t, HealthCheck())
	assert.False(t, IsInitialized())
	assert.NoError(t, Close())
}
