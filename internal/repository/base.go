// Package repository implements the data access layer for the application.
package repository

import (
	"murmur/internal/database"

	"gorm.io/gorm"
)

// readDB prefers the configured read replica for queries that tolerate lag.
func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}
