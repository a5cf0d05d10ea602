package codehost

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	repositoryPageSize     = 100
	defaultCommitPage      = 10
	lowRateLimitWarnMark   = 100
	defaultClientCacheSize = 256
)

// FactoryConfig describes how per-token clients reach GitHub.
type FactoryConfig struct {
	// BaseURL overrides the public REST endpoint (GitHub Enterprise or tests).
	BaseURL   string
	Transport http.RoundTripper
	Logger    *zap.Logger
	// ClientCacheSize bounds how many per-token clients are retained.
	ClientCacheSize int
}

// Factory builds GitHub clients bound to a user's access token.
type Factory struct {
	baseURL   *url.URL
	transport http.RoundTripper
	logger    *zap.Logger

	mu      sync.Mutex
	clients *lru.Cache[string, *githubClient]
}

// NewFactory validates the configuration and constructs a Factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	factory := &Factory{
		transport: cfg.Transport,
		logger:    cfg.Logger,
	}
	if factory.logger == nil {
		factory.logger = zap.NewNop()
	}
	size := cfg.ClientCacheSize
	if size <= 0 {
		size = defaultClientCacheSize
	}
	clients, err := lru.New[string, *githubClient](size)
	if err != nil {
		return nil, fmt.Errorf("codehost: creating client cache: %w", err)
	}
	factory.clients = clients
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		if !strings.HasSuffix(trimmed, "/") {
			trimmed += "/"
		}
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("codehost: parsing base URL: %w", err)
		}
		factory.baseURL = parsed
	}
	return factory, nil
}

// ForToken returns a Client authenticating with the given OAuth access token.
//
// The transport stack is httpcache (ETag revalidation) under go-github-ratelimit
// (sleeps through secondary rate limits). Clients are retained per token hash,
// so conditional requests survive across calls while cached responses never
// cross users. httpcache keys entries by URL only.
func (f *Factory) ForToken(token string) Client {
	key := tokenKey(token)

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.clients.Get(key); ok {
		return client
	}
	client := f.newClient(token)
	f.clients.Add(key, client)
	return client
}

func (f *Factory) newClient(token string) *githubClient {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	if f.transport != nil {
		cacheTransport.Transport = f.transport
	}
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)
	if f.baseURL != nil {
		client.BaseURL = f.baseURL
	}
	return &githubClient{gh: client, logger: f.logger}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type githubClient struct {
	gh     *gh.Client
	logger *zap.Logger
}

func (c *githubClient) ListRepositories(ctx context.Context) ([]Repository, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: repositoryPageSize},
	}
	repositories, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, translateError("listing repositories", err)
	}
	c.logRateLimit(resp, "repositories.list", len(repositories))

	result := make([]Repository, 0, len(repositories))
	for _, repository := range repositories {
		result = append(result, mapRepository(repository))
	}
	return result, nil
}

func (c *githubClient) ListContents(ctx context.Context, owner, repo, path string) ([]ContentEntry, error) {
	file, directory, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, translateError(fmt.Sprintf("listing contents of %s/%s:%s", owner, repo, path), err)
	}
	c.logRateLimit(resp, "repositories.contents", len(directory))

	if file != nil {
		return []ContentEntry{mapContent(file)}, nil
	}
	entries := make([]ContentEntry, 0, len(directory))
	for _, item := range directory {
		entries = append(entries, mapContent(item))
	}
	return entries, nil
}

func (c *githubClient) GetFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", translateError(fmt.Sprintf("reading %s/%s:%s", owner, repo, path), err)
	}
	c.logRateLimit(resp, "repositories.contents", 1)

	if file == nil || file.GetType() != EntryTypeFile {
		return "", fmt.Errorf("reading %s/%s:%s: %w", owner, repo, path, ErrNotAFile)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s/%s:%s: %w", owner, repo, path, err)
	}
	if content == "" {
		return "", fmt.Errorf("reading %s/%s:%s: %w", owner, repo, path, ErrNotAFile)
	}
	return content, nil
}

func (c *githubClient) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	languages, resp, err := c.gh.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, translateError(fmt.Sprintf("listing languages of %s/%s", owner, repo), err)
	}
	c.logRateLimit(resp, "repositories.languages", len(languages))
	if languages == nil {
		languages = map[string]int{}
	}
	return languages, nil
}

func (c *githubClient) ListCommits(ctx context.Context, owner, repo string, perPage int) ([]Commit, error) {
	if perPage <= 0 {
		perPage = defaultCommitPage
	}
	opts := &gh.CommitsListOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, translateError(fmt.Sprintf("listing commits of %s/%s", owner, repo), err)
	}
	c.logRateLimit(resp, "repositories.commits", len(commits))

	result := make([]Commit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, mapCommit(commit))
	}
	return result, nil
}

func (c *githubClient) GetCommitDetails(ctx context.Context, owner, repo, sha string) (CommitDetails, error) {
	commit, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, &gh.ListOptions{})
	if err != nil {
		return CommitDetails{}, translateError(fmt.Sprintf("reading commit %s of %s/%s", sha, owner, repo), err)
	}
	c.logRateLimit(resp, "repositories.commit", len(commit.Files))

	details := CommitDetails{
		Commit: mapCommit(commit),
		Files:  make([]CommitFile, 0, len(commit.Files)),
	}
	for _, file := range commit.Files {
		details.Files = append(details.Files, CommitFile{
			Filename:  file.GetFilename(),
			Status:    file.GetStatus(),
			Additions: file.GetAdditions(),
			Deletions: file.GetDeletions(),
			Changes:   file.GetChanges(),
			Patch:     file.GetPatch(),
		})
	}
	return details, nil
}

func (c *githubClient) logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		zap.String("endpoint", endpoint),
		zap.Int("count", count),
		zap.Int("rate_remaining", resp.Rate.Remaining),
		zap.Int("rate_limit", resp.Rate.Limit),
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < lowRateLimitWarnMark {
		c.logger.Warn("github rate limit low",
			zap.Int("remaining", resp.Rate.Remaining),
			zap.Duration("reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second)),
		)
	}
}

// translateError maps GitHub status codes onto the package sentinels.
func translateError(action string, err error) error {
	var responseErr *gh.ErrorResponse
	if errors.As(err, &responseErr) && responseErr.Response != nil {
		switch responseErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", action, ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", action, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

func mapRepository(repository *gh.Repository) Repository {
	return Repository{
		ID:          repository.GetID(),
		Name:        repository.GetName(),
		FullName:    repository.GetFullName(),
		Description: repository.GetDescription(),
		URL:         repository.GetHTMLURL(),
		Language:    repository.GetLanguage(),
		IsPrivate:   repository.GetPrivate(),
		UpdatedAt:   repository.GetUpdatedAt().Time,
	}
}

func mapContent(content *gh.RepositoryContent) ContentEntry {
	return ContentEntry{
		Name:        content.GetName(),
		Path:        content.GetPath(),
		Type:        content.GetType(),
		Size:        content.GetSize(),
		SHA:         content.GetSHA(),
		DownloadURL: content.GetDownloadURL(),
	}
}

func mapCommit(commit *gh.RepositoryCommit) Commit {
	author := commit.GetCommit().GetAuthor()
	return Commit{
		SHA:     commit.GetSHA(),
		Message: commit.GetCommit().GetMessage(),
		Author:  author.GetName(),
		Date:    author.GetDate().Time,
		URL:     commit.GetHTMLURL(),
	}
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, fullName)
	}
	return parts[0], parts[1], nil
}
