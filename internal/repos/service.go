package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")

	// ErrInvalidActivation indicates required activation fields were absent.
	ErrInvalidActivation = errors.New("repos: github id, name, full name and url are required")
	// ErrRepositoryNotFound indicates the repository is absent or belongs to another user.
	ErrRepositoryNotFound = errors.New("repos: repository not found")
	// ErrRepositoryOwnedElsewhere indicates another user already tracks the provider repository.
	ErrRepositoryOwnedElsewhere = errors.New("repos: repository tracked by another user")

	noOpLogger = zap.NewNop()
)

// ServiceError carries a dotted error code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "repos.service.new"
	opToggleActivation = "repos.toggle_activation"
	opListForUser      = "repos.list_for_user"
	opGetForUser       = "repos.get_for_user"
	opMarkSynced       = "repos.mark_synced"
	opDeleteRepository = "repos.delete"

	deleteDocumentsStatement = "DELETE FROM documents WHERE repository_id = ?"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the repository service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service persists tracked repositories.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// ToggleActivation creates an active row for an unseen provider repository,
// or flips the active flag of the caller's existing row.
func (s *Service) ToggleActivation(ctx context.Context, userID string, request ActivationRequest) (ActivationResult, error) {
	if s.db == nil {
		return ActivationResult{}, newServiceError(opToggleActivation, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(userID) == "" {
		return ActivationResult{}, newServiceError(opToggleActivation, "missing_user_id", errMissingUserID)
	}
	if request.GitHubID <= 0 ||
		strings.TrimSpace(request.Name) == "" ||
		strings.TrimSpace(request.FullName) == "" ||
		strings.TrimSpace(request.URL) == "" {
		return ActivationResult{}, newServiceError(opToggleActivation, "invalid_request", ErrInvalidActivation)
	}

	var result ActivationResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Repository
		err := tx.Where("github_id = ?", request.GitHubID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			identifier, idErr := s.idProvider.NewID()
			if idErr != nil {
				s.logError(opToggleActivation, "id_generation_failed", idErr, zap.Int64("github_id", request.GitHubID))
				return newServiceError(opToggleActivation, "id_generation_failed", idErr)
			}
			repository := Repository{
				ID:          identifier,
				UserID:      userID,
				GitHubID:    request.GitHubID,
				Name:        strings.TrimSpace(request.Name),
				FullName:    strings.TrimSpace(request.FullName),
				Description: optionalString(request.Description),
				URL:         strings.TrimSpace(request.URL),
				Language:    optionalString(request.Language),
				IsPrivate:   request.IsPrivate,
				IsActive:    true,
			}
			if err := tx.Create(&repository).Error; err != nil {
				s.logError(opToggleActivation, "insert_failed", err, zap.Int64("github_id", request.GitHubID))
				return newServiceError(opToggleActivation, "insert_failed", err)
			}
			result = ActivationResult{Repository: repository, Created: true}
			return nil
		}
		if err != nil {
			s.logError(opToggleActivation, "select_failed", err, zap.Int64("github_id", request.GitHubID))
			return newServiceError(opToggleActivation, "select_failed", err)
		}
		if existing.UserID != userID {
			return newServiceError(opToggleActivation, "owned_elsewhere", ErrRepositoryOwnedElsewhere)
		}

		existing.IsActive = !existing.IsActive
		existing.Name = strings.TrimSpace(request.Name)
		existing.FullName = strings.TrimSpace(request.FullName)
		existing.URL = strings.TrimSpace(request.URL)
		existing.Description = optionalString(request.Description)
		existing.IsPrivate = request.IsPrivate
		updates := map[string]interface{}{
			"is_active":   existing.IsActive,
			"name":        existing.Name,
			"full_name":   existing.FullName,
			"url":         existing.URL,
			"description": existing.Description,
			"is_private":  existing.IsPrivate,
		}
		// An empty language keeps the one detected by the last generation run.
		if language := optionalString(request.Language); language != nil {
			existing.Language = language
			updates["language"] = language
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			s.logError(opToggleActivation, "update_failed", err, zap.String("repository_id", existing.ID))
			return newServiceError(opToggleActivation, "update_failed", err)
		}
		result = ActivationResult{Repository: existing}
		return nil
	})
	if txErr != nil {
		return ActivationResult{}, txErr
	}
	return result, nil
}

// ListForUser returns every tracked repository of the user, most recently updated first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Repository, error) {
	return s.list(ctx, userID, false)
}

// ListActiveForUser returns only the user's active repositories.
func (s *Service) ListActiveForUser(ctx context.Context, userID string) ([]Repository, error) {
	return s.list(ctx, userID, true)
}

func (s *Service) list(ctx context.Context, userID string, activeOnly bool) ([]Repository, error) {
	if s.db == nil {
		return nil, newServiceError(opListForUser, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, newServiceError(opListForUser, "missing_user_id", errMissingUserID)
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	repositories := []Repository{}
	if err := query.Order("updated_at DESC").Find(&repositories).Error; err != nil {
		s.logError(opListForUser, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListForUser, "query_failed", err)
	}
	return repositories, nil
}

// GetForUser loads a repository the user owns.
func (s *Service) GetForUser(ctx context.Context, userID, repositoryID string) (Repository, error) {
	if s.db == nil {
		return Repository{}, newServiceError(opGetForUser, "missing_database", errMissingDatabase)
	}
	var repository Repository
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", repositoryID, userID).
		Take(&repository).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Repository{}, newServiceError(opGetForUser, "not_found", ErrRepositoryNotFound)
	}
	if err != nil {
		s.logError(opGetForUser, "query_failed", err, zap.String("repository_id", repositoryID))
		return Repository{}, newServiceError(opGetForUser, "query_failed", err)
	}
	return repository, nil
}

// MarkSynced records the completion of a documentation run.
func (s *Service) MarkSynced(ctx context.Context, repositoryID string, language string) error {
	if s.db == nil {
		return newServiceError(opMarkSynced, "missing_database", errMissingDatabase)
	}
	updates := map[string]interface{}{
		"last_sync": s.clock().UTC(),
	}
	if trimmed := strings.TrimSpace(language); trimmed != "" {
		updates["language"] = trimmed
	}
	result := s.db.WithContext(ctx).Model(&Repository{}).Where("id = ?", repositoryID).Updates(updates)
	if result.Error != nil {
		s.logError(opMarkSynced, "update_failed", result.Error, zap.String("repository_id", repositoryID))
		return newServiceError(opMarkSynced, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opMarkSynced, "not_found", ErrRepositoryNotFound)
	}
	return nil
}

// Delete removes a repository the user owns together with its documents.
func (s *Service) Delete(ctx context.Context, userID, repositoryID string) error {
	if s.db == nil {
		return newServiceError(opDeleteRepository, "missing_database", errMissingDatabase)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", repositoryID, userID).Delete(&Repository{})
		if result.Error != nil {
			s.logError(opDeleteRepository, "delete_failed", result.Error, zap.String("repository_id", repositoryID))
			return newServiceError(opDeleteRepository, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opDeleteRepository, "not_found", ErrRepositoryNotFound)
		}
		if err := tx.Exec(deleteDocumentsStatement, repositoryID).Error; err != nil {
			s.logError(opDeleteRepository, "cascade_failed", err, zap.String("repository_id", repositoryID))
			return newServiceError(opDeleteRepository, "cascade_failed", err)
		}
		return nil
	})
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("repos service error", attrs...)
}
