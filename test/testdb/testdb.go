// Package testdb opens throwaway SQLite databases for tests.
package testdb

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/pkg/logger"
)

// New returns a migrated in-memory database that is closed when the test ends.
// The pool holds a single connection so every query sees the same database;
// code running inside a transaction must therefore use the transaction's repos.
func New(t testing.TB) *repository.DB {
	t.Helper()

	db, err := repository.Open(sqlite.Open(":memory:"), logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is off)
	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateUser inserts a user with the given username.
func CreateUser(t testing.TB, db *repository.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, Level: 1}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateJourney inserts a journey for a user with minimal metrics.
func CreateJourney(t testing.TB, db *repository.DB, userID uint, mode models.Mode, distanceKm, co2Saved float64, at time.Time) *models.Journey {
	t.Helper()

	journey := &models.Journey{
		UserID:      userID,
		Origin:      "A",
		Destination: "B",
		Mode:        mode,
		DistanceKm:  distanceKm,
		CO2Saved:    co2Saved,
		XPEarned:    1,
		CreatedAt:   at.UTC(),
	}
	if err := db.Create(journey).Error; err != nil {
		t.Fatalf("Failed to create test journey: %v", err)
	}
	return journey
}
