package docs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/summarizer"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/textgen"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

const (
	opPipelineNew = "docs.pipeline.new"
	opGenerate    = "docs.generate"

	maxSummaryRunes = 280
)

// RepositoryLookup is the slice of the repository service the pipeline needs.
type RepositoryLookup interface {
	GetForUser(ctx context.Context, userID, repositoryID string) (repos.Repository, error)
	MarkSynced(ctx context.Context, repositoryID string, language string) error
}

// ClientFactory hands out code-host clients bound to an access token.
type ClientFactory interface {
	ForToken(token string) codehost.Client
}

// DocumentWriter persists generated documents.
type DocumentWriter interface {
	Upsert(ctx context.Context, document Document) (Document, error)
}

// PipelineConfig describes the pipeline dependencies and limits.
type PipelineConfig struct {
	Repositories   RepositoryLookup
	Clients        ClientFactory
	Generator      textgen.Generator
	Documents      DocumentWriter
	MaxFiles       int
	MaxSourceChars int
	Logger         *zap.Logger
}

// GenerateRequest identifies who asked for documentation of which repository.
type GenerateRequest struct {
	UserID       string
	AccessToken  string
	RepositoryID string
}

// Result is the outcome of one generation run.
type Result struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processedCount"`
	SkippedFiles   []string `json:"skippedFiles,omitempty"`
	RepositoryID   string   `json:"repositoryId"`
	Language       string   `json:"language,omitempty"`
}

// Pipeline documents the root files of a tracked repository, one file at a time.
type Pipeline struct {
	repositories   RepositoryLookup
	clients        ClientFactory
	generator      textgen.Generator
	documents      DocumentWriter
	maxFiles       int
	maxSourceChars int
	logger         *zap.Logger
	markdown       goldmark.Markdown
}

// NewPipeline validates dependencies and constructs the pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Repositories == nil || cfg.Clients == nil || cfg.Generator == nil || cfg.Documents == nil {
		return nil, newServiceError(opPipelineNew, "missing_dependency", errMissingDependency)
	}
	if cfg.MaxFiles <= 0 || cfg.MaxSourceChars <= 0 {
		return nil, newServiceError(opPipelineNew, "invalid_limits", fmt.Errorf("max files %d and max source chars %d must be positive", cfg.MaxFiles, cfg.MaxSourceChars))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Pipeline{
		repositories:   cfg.Repositories,
		clients:        cfg.Clients,
		generator:      cfg.Generator,
		documents:      cfg.Documents,
		maxFiles:       cfg.MaxFiles,
		maxSourceChars: cfg.MaxSourceChars,
		logger:         logger,
		markdown:       goldmark.New(),
	}, nil
}

// Generate documents up to MaxFiles candidates of the repository root.
// Per-file failures are logged and skipped; the run fails only on
// authentication, lookup or listing errors.
func (p *Pipeline) Generate(ctx context.Context, request GenerateRequest) (Result, error) {
	result, err := p.generate(ctx, request)
	if err != nil {
		runCounter.WithLabelValues(runOutcomeFailed).Inc()
		return Result{}, err
	}
	runCounter.WithLabelValues(runOutcomeSucceeded).Inc()
	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, request GenerateRequest) (Result, error) {
	if strings.TrimSpace(request.AccessToken) == "" {
		return Result{}, newServiceError(opGenerate, "missing_access_token", ErrMissingAccessToken)
	}

	repository, err := p.repositories.GetForUser(ctx, request.UserID, request.RepositoryID)
	if err != nil {
		return Result{}, err
	}
	owner, name, err := codehost.SplitFullName(repository.FullName)
	if err != nil {
		logError(p.logger, opGenerate, "invalid_full_name", err, zap.String("repository_id", repository.ID))
		return Result{}, newServiceError(opGenerate, "invalid_full_name", err)
	}

	client := p.clients.ForToken(request.AccessToken)
	entries, err := client.ListContents(ctx, owner, name, "")
	if err != nil {
		logError(p.logger, opGenerate, "list_contents_failed", err, zap.String("repository", repository.FullName))
		return Result{}, newServiceError(opGenerate, "list_contents_failed", err)
	}

	candidates := SelectCandidates(entries, p.maxFiles)
	if len(candidates) == 0 {
		return Result{}, newServiceError(opGenerate, "no_candidates", ErrNoCandidates)
	}

	start := time.Now()
	p.logger.Info("documentation run started",
		zap.String("repository", repository.FullName),
		zap.Int("candidates", len(candidates)),
	)

	result := Result{RepositoryID: repository.ID}
	for _, candidate := range candidates {
		if err := p.documentFile(ctx, client, repository, owner, name, candidate); err != nil {
			p.logger.Warn("skipping file",
				zap.String("repository", repository.FullName),
				zap.String("file_path", candidate.Path),
				zap.Error(err),
			)
			result.SkippedFiles = append(result.SkippedFiles, candidate.Path)
			fileCounter.WithLabelValues(fileResultSkipped).Inc()
			continue
		}
		result.ProcessedCount++
		fileCounter.WithLabelValues(fileResultProcessed).Inc()
	}

	result.Language = p.primaryLanguage(ctx, client, owner, name)
	if err := p.repositories.MarkSynced(ctx, repository.ID, result.Language); err != nil {
		logError(p.logger, opGenerate, "mark_synced_failed", err, zap.String("repository_id", repository.ID))
		return Result{}, err
	}

	result.Success = true
	result.Message = fmt.Sprintf("Documentation generated for %d of %d files.", result.ProcessedCount, len(candidates))
	p.logger.Info("documentation run finished",
		zap.String("repository", repository.FullName),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("skipped", len(result.SkippedFiles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (p *Pipeline) documentFile(ctx context.Context, client codehost.Client, repository repos.Repository, owner, name string, entry codehost.ContentEntry) error {
	source, err := client.GetFileContent(ctx, owner, name, entry.Path)
	if err != nil {
		return fmt.Errorf("fetching content: %w", err)
	}

	input := TruncateRunes(source, p.maxSourceChars)
	content := p.generator.Generate(ctx, input, entry.Name)
	language := summarizer.LanguageForFile(entry.Name)

	_, err = p.documents.Upsert(ctx, Document{
		RepositoryID: repository.ID,
		FilePath:     entry.Path,
		FileName:     entry.Name,
		Content:      content,
		SourceCode:   &input,
		Summary:      p.extractSummary(content),
		Language:     &language,
		Type:         TypeForFile(entry.Name),
	})
	if err != nil {
		return fmt.Errorf("storing document: %w", err)
	}
	return nil
}

// primaryLanguage picks the language with the most bytes; ties go to the
// alphabetically first name. Failures only cost the language update.
func (p *Pipeline) primaryLanguage(ctx context.Context, client codehost.Client, owner, name string) string {
	languages, err := client.ListLanguages(ctx, owner, name)
	if err != nil {
		p.logger.Warn("language detection failed",
			zap.String("repository", owner+"/"+name),
			zap.Error(err),
		)
		return ""
	}
	return PrimaryLanguage(languages)
}

// PrimaryLanguage returns the language with the largest byte count.
func PrimaryLanguage(languages map[string]int) string {
	names := make([]string, 0, len(languages))
	for language := range languages {
		names = append(names, language)
	}
	sort.Strings(names)

	primary := ""
	largest := -1
	for _, language := range names {
		if languages[language] > largest {
			primary = language
			largest = languages[language]
		}
	}
	return primary
}

// TruncateRunes keeps at most limit runes of source.
func TruncateRunes(source string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for index := range source {
		if count == limit {
			return source[:index]
		}
		count++
	}
	return source
}

// extractSummary returns the first paragraph of the generated Markdown as plain text.
func (p *Pipeline) extractSummary(content string) *string {
	source := []byte(content)
	document := p.markdown.Parser().Parse(text.NewReader(source))

	var summary string
	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if paragraph, ok := node.(*ast.Paragraph); ok {
			summary = strings.Join(strings.Fields(string(paragraph.Text(source))), " ")
			if summary != "" {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	if summary == "" {
		return nil
	}
	summary = TruncateRunes(summary, maxSummaryRunes)
	return &summary
}
