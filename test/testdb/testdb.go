// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"testing"
	"time"

	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// New returns a fresh, migrated database that is closed when the test ends.
func New(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.NewDB(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// User creates a user with the given username and role.
func User(t *testing.T, db *repository.DB, username string, role models.Role) *models.User {
	t.Helper()

	email := username + "@example.org"
	user := &models.User{Username: username, Email: &email, Role: role}
	if err := repository.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// Contest creates a contest running between start and end, owned by creator.
func Contest(t *testing.T, db *repository.DB, creator *models.User, name string, start, end time.Time, jury ...string) *models.Contest {
	t.Helper()

	contest := &models.Contest{
		Name:                  name,
		Slug:                  models.Slugify(name),
		ProjectName:           "Wikipedia",
		StartDate:             &start,
		EndDate:               &end,
		CreatorID:             creator.ID,
		CreatedBy:             creator.Username,
		JuryMembers:           jury,
		MarksSettingAccepted:  10,
		MarksSettingRejected:  0,
		AllowedSubmissionType: models.SubmissionTypeBoth,
	}
	if err := repository.NewContestRepository(db).Create(contest); err != nil {
		t.Fatalf("Failed to create contest %s: %v", name, err)
	}
	return contest
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Clock returns a fixed time source.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
