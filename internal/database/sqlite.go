package database

import (
	"errors"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMissingPath is returned when no database file is configured.
var ErrMissingPath = errors.New("database path is required")

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, ErrMissingPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate brings the schema up to date and applies pending data migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&users.User{}, &repos.Repository{}, &docs.Document{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
