package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zfogg/traveltweets/internal/config"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory SQLite database with the full schema.
// Each call gets its own database, so no state leaks between tests.
func NewTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", URL: dsn}, false)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps the in-memory database and the foreign_keys
	// pragma alive for the lifetime of the handle.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
