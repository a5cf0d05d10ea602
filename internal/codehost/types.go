// Package codehost reads repositories, files and commits from GitHub on behalf of a signed-in user.
package codehost

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthorized indicates GitHub rejected the access token.
	ErrUnauthorized = errors.New("codehost: access token rejected")
	// ErrNotFound indicates the repository, path or commit does not exist or is not visible.
	ErrNotFound = errors.New("codehost: resource not found")
	// ErrNotAFile indicates a content lookup resolved to a directory or an empty file.
	ErrNotAFile = errors.New("codehost: path is not a file or has no content")
	// ErrInvalidRepository indicates a repository name that is not "owner/name".
	ErrInvalidRepository = errors.New("codehost: repository must be owner/name")
)

// Content entry kinds reported by ListContents.
const (
	EntryTypeFile = "file"
	EntryTypeDir  = "dir"
)

// Client is the per-token view of the code host used by handlers and the generation pipeline.
type Client interface {
	ListRepositories(ctx context.Context) ([]Repository, error)
	ListContents(ctx context.Context, owner, repo, path string) ([]ContentEntry, error)
	GetFileContent(ctx context.Context, owner, repo, path string) (string, error)
	ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error)
	ListCommits(ctx context.Context, owner, repo string, perPage int) ([]Commit, error)
	GetCommitDetails(ctx context.Context, owner, repo, sha string) (CommitDetails, error)
}

// Repository is GitHub's view of a repository the user can access.
type Repository struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Language    string    `json:"language"`
	IsPrivate   bool      `json:"isPrivate"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ContentEntry is one item of a directory listing.
type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int    `json:"size"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"downloadUrl"`
}

// Commit summarizes a commit in a history listing.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// CommitFile describes the change one commit made to a file.
type CommitFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// CommitDetails is a commit together with its per-file diff.
type CommitDetails struct {
	Commit
	Files []CommitFile `json:"files"`
}
