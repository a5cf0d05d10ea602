package docs

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opStoreNew            = "docs.store.new"
	opUpsertDocument      = "docs.upsert"
	opListDocuments       = "docs.list_for_repository"
	opCountDocuments      = "docs.count_by_repository"
	opDeleteForRepository = "docs.delete_for_repository"
)

var upsertColumns = []string{
	"file_name",
	"content",
	"source_code",
	"summary",
	"language",
	"type",
	"updated_at",
}

// StoreConfig describes the dependencies of the document store.
type StoreConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Store persists documents keyed by repository and file path.
type Store struct {
	db         *gorm.DB
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewStore validates dependencies and constructs the store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, idProvider: idProvider, logger: logger}, nil
}

// Upsert inserts the document or overwrites the row with the same repository and path.
func (s *Store) Upsert(ctx context.Context, document Document) (Document, error) {
	if strings.TrimSpace(document.RepositoryID) == "" ||
		strings.TrimSpace(document.FilePath) == "" ||
		document.Content == "" {
		return Document{}, newServiceError(opUpsertDocument, "invalid_document", ErrInvalidDocument)
	}
	if document.FileName == "" {
		document.FileName = document.FilePath
	}
	if document.Type == "" {
		document.Type = TypeForFile(document.FileName)
	}

	identifier, err := s.idProvider.NewID()
	if err != nil {
		logError(s.logger, opUpsertDocument, "id_generation_failed", err, zap.String("file_path", document.FilePath))
		return Document{}, newServiceError(opUpsertDocument, "id_generation_failed", err)
	}
	document.ID = identifier

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository_id"}, {Name: "file_path"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(&document).Error
	if err != nil {
		logError(s.logger, opUpsertDocument, "write_failed", err,
			zap.String("repository_id", document.RepositoryID),
			zap.String("file_path", document.FilePath),
		)
		return Document{}, newServiceError(opUpsertDocument, "write_failed", err)
	}

	var stored Document
	err = s.db.WithContext(ctx).
		Where("repository_id = ? AND file_path = ?", document.RepositoryID, document.FilePath).
		Take(&stored).Error
	if err != nil {
		logError(s.logger, opUpsertDocument, "reload_failed", err, zap.String("file_path", document.FilePath))
		return Document{}, newServiceError(opUpsertDocument, "reload_failed", err)
	}
	return stored, nil
}

// ListForRepository returns the repository's documents ordered by path.
func (s *Store) ListForRepository(ctx context.Context, repositoryID string) ([]Document, error) {
	documents := []Document{}
	err := s.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Order("file_path ASC").
		Find(&documents).Error
	if err != nil {
		logError(s.logger, opListDocuments, "query_failed", err, zap.String("repository_id", repositoryID))
		return nil, newServiceError(opListDocuments, "query_failed", err)
	}
	return documents, nil
}

// CountByRepository returns how many documents the repository has.
func (s *Store) CountByRepository(ctx context.Context, repositoryID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Document{}).Where("repository_id = ?", repositoryID).Count(&count).Error
	if err != nil {
		logError(s.logger, opCountDocuments, "query_failed", err, zap.String("repository_id", repositoryID))
		return 0, newServiceError(opCountDocuments, "query_failed", err)
	}
	return count, nil
}

// DeleteForRepository removes every document of the repository.
func (s *Store) DeleteForRepository(ctx context.Context, repositoryID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID).Delete(&Document{})
	if result.Error != nil {
		logError(s.logger, opDeleteForRepository, "delete_failed", result.Error, zap.String("repository_id", repositoryID))
		return 0, newServiceError(opDeleteForRepository, "delete_failed", result.Error)
	}
	return result.RowsAffected, nil
}
