// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// NewSQLiteDB opens a migrated in-memory database private to the running test.
// The connection is closed when the test ends.
func NewSQLiteDB(t *testing.T, prefix string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", prefix, dsnReplacer.Replace(t.Name()))
	db, err := database.ConnectWithDialector(sqlite.Open(dsn), &config.Config{DBMaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
