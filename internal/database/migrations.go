package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRemoveOrphanedDocuments = "2026-10-12_remove_orphaned_documents"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRemoveOrphanedDocuments, apply: removeOrphanedDocuments},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// removeOrphanedDocuments drops documents whose repository no longer exists.
func removeOrphanedDocuments(db *gorm.DB) error {
	tracked := db.Model(&repos.Repository{}).Select("id")
	return db.Where("repository_id NOT IN (?)", tracked).Delete(&docs.Document{}).Error
}
