package testutil

import (
	"testing"

	"osintdeck/internal/database"
	"osintdeck/internal/webconfig"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a cleanup function that should be called after the test.
func SetupTestDB(t *testing.T) func() {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty :memory: database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	database.DB = db

	return func() {
		sqlDB.Close()
		database.DB = nil
	}
}

// TestConfig returns a test configuration
func TestConfig() *webconfig.Config {
	cfg := webconfig.Default()
	cfg.Auth.JWTSecret = "test-secret-key-for-unit-tests"
	cfg.Auth.JWTExpire = "24h"
	cfg.Enrichment.SocialDelayMS = 0
	cfg.Enrichment.CacheEnabled = false
	return &cfg
}
