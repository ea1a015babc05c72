// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/config"
	"github.com/emmanuel-dcoder/teevil-api/internal/database"
	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
)

// NewDB returns a migrated SQLite database in t.TempDir. A single connection
// keeps SQLite's writer lock from surfacing as SQLITE_BUSY under concurrent tests.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "teevil.db") + "?_busy_timeout=5000",
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
	}
	db, err := database.NewDB(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.MigrateCollaborators(db); err != nil {
		t.Fatalf("migrate collaborators: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fixture holds the users and job seeded by Seed.
type Fixture struct {
	Client     models.User
	Freelancer models.User
	Admin      models.User
	Stranger   models.User
	Job        models.Job
}

// Seed inserts a client owning one job, a freelancer, an admin and a second
// client who owns nothing.
func Seed(t *testing.T, db *gorm.DB) Fixture {
	t.Helper()
	f := Fixture{
		Client:     models.User{FirstName: "Ada", LastName: "Client", Email: "client@teevil.test", Role: domain.RoleClient},
		Freelancer: models.User{FirstName: "Femi", LastName: "Dev", Email: "freelancer@teevil.test", Role: domain.RoleFreelancer},
		Admin:      models.User{FirstName: "Root", Email: "admin@teevil.test", Role: domain.RoleAdmin},
		Stranger:   models.User{FirstName: "Other", Email: "other@teevil.test", Role: domain.RoleClient},
	}
	for _, u := range []*models.User{&f.Client, &f.Freelancer, &f.Admin, &f.Stranger} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	f.Job = models.Job{Title: "Landing page", CreatedBy: f.Client.ID, Status: "active"}
	if err := db.Create(&f.Job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return f
}
