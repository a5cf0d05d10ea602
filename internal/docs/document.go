// Package docs stores generated documentation and runs the generation pipeline.
package docs

import (
	"path"
	"strings"
	"time"
)

// Document types besides raw extensions.
const (
	TypeReadme = "readme"
	TypeCode   = "code"
)

// Document is the generated Markdown for one file of a tracked repository.
type Document struct {
	ID           string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	RepositoryID string    `gorm:"column:repository_id;size:64;not null;uniqueIndex:idx_documents_repository_path,priority:1" json:"repositoryId"`
	FilePath     string    `gorm:"column:file_path;size:1024;not null;uniqueIndex:idx_documents_repository_path,priority:2" json:"filePath"`
	FileName     string    `gorm:"column:file_name;size:255;not null" json:"fileName"`
	Content      string    `gorm:"column:content;type:text;not null" json:"content"`
	SourceCode   *string   `gorm:"column:source_code;type:text" json:"sourceCode,omitempty"`
	Summary      *string   `gorm:"column:summary;type:text" json:"summary"`
	Language     *string   `gorm:"column:language;size:64" json:"language"`
	Type         string    `gorm:"column:type;size:32;not null" json:"type"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// TypeForFile classifies a file as readme, its lowercase extension, or code.
func TypeForFile(fileName string) string {
	if isReadme(fileName) {
		return TypeReadme
	}
	extension := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if extension == "" {
		return TypeCode
	}
	return extension
}

func isReadme(fileName string) bool {
	return strings.Contains(strings.ToUpper(fileName), "README")
}
