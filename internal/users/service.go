package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/ids"
	"gorm.io/gorm"
)

var (
	// ErrInvalidProfile indicates the provider profile lacked a usable identifier.
	ErrInvalidProfile = errors.New("users: invalid profile")
	// ErrUserNotFound indicates no user row matched the identifier.
	ErrUserNotFound = errors.New("users: user not found")
)

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
}

// Service creates and refreshes users imported from GitHub.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider ids.Provider
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: idProvider,
	}, nil
}

// UpsertFromProfile creates the user on first sign-in and refreshes the
// stored profile on every later sign-in.
func (s *Service) UpsertFromProfile(ctx context.Context, profile Profile) (User, error) {
	if profile.GitHubID <= 0 || normalize(profile.Login) == "" {
		return User{}, ErrInvalidProfile
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("github_id = ?", profile.GitHubID).
		First(&user).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identifier, idErr := s.idProvider.NewID()
		if idErr != nil {
			return User{}, idErr
		}
		user = User{
			ID:          identifier,
			GitHubID:    profile.GitHubID,
			Login:       normalize(profile.Login),
			Name:        normalize(profile.Name),
			Email:       normalize(profile.Email),
			AvatarURL:   normalize(profile.AvatarURL),
			LastLoginAt: s.now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return User{}, err
		}
		return user, nil
	}
	if err != nil {
		return User{}, err
	}

	updates := map[string]interface{}{
		"login":         normalize(profile.Login),
		"last_login_at": s.now().UTC(),
	}
	if name := normalize(profile.Name); name != "" {
		updates["name"] = name
	}
	if email := normalize(profile.Email); email != "" {
		updates["email"] = email
	}
	if avatar := normalize(profile.AvatarURL); avatar != "" {
		updates["avatar_url"] = avatar
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return User{}, err
	}
	return s.Get(ctx, user.ID)
}

// Get loads a user by internal identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
