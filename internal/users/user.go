package users

import (
	"strings"
	"time"
)

// User is the identity imported from GitHub on sign-in.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	GitHubID    int64     `gorm:"column:github_id;not null;uniqueIndex" json:"githubId"`
	Login       string    `gorm:"column:login;size:190;not null" json:"login"`
	Name        string    `gorm:"column:name;size:320" json:"name"`
	Email       string    `gorm:"column:email;size:320" json:"email"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512" json:"avatarUrl"`
	LastLoginAt time.Time `gorm:"column:last_login_at" json:"lastLoginAt"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// Profile is the subset of the GitHub user payload the service stores.
type Profile struct {
	GitHubID  int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
