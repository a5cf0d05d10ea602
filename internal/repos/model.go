package repos

import (
	"strings"
	"time"
)

// Repository is a GitHub repository tracked by one user.
type Repository struct {
	ID          string     `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID      string     `gorm:"column:user_id;size:64;not null;index:idx_repositories_user_updated,priority:1" json:"userId"`
	GitHubID    int64      `gorm:"column:github_id;not null;uniqueIndex" json:"githubId"`
	Name        string     `gorm:"column:name;size:190;not null" json:"name"`
	FullName    string     `gorm:"column:full_name;size:380;not null" json:"fullName"`
	Description *string    `gorm:"column:description;type:text" json:"description"`
	URL         string     `gorm:"column:url;size:512;not null" json:"url"`
	Language    *string    `gorm:"column:language;size:64" json:"language"`
	IsPrivate   bool       `gorm:"column:is_private;not null;default:false" json:"isPrivate"`
	IsActive    bool       `gorm:"column:is_active;not null;default:false" json:"isActive"`
	LastSync    *time.Time `gorm:"column:last_sync" json:"lastSync"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime;index:idx_repositories_user_updated,priority:2" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Repository) TableName() string {
	return "repositories"
}

// ActivationRequest carries the provider metadata posted by the dashboard.
type ActivationRequest struct {
	GitHubID    int64
	Name        string
	FullName    string
	Description string
	URL         string
	Language    string
	IsPrivate   bool
}

// ActivationResult reports the row after a toggle and whether it was created.
type ActivationResult struct {
	Repository Repository
	Created    bool
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
