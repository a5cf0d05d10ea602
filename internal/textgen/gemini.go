package textgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	geminiAPIVersion     = "v1beta"
	defaultGeminiTimeout = 60 * time.Second
)

var (
	errMissingAPIKey   = errors.New("textgen: gemini api key is required")
	errMissingModel    = errors.New("textgen: gemini model is required")
	errMissingBaseURL  = errors.New("textgen: gemini base url is required")
	errEmptyCandidates = errors.New("textgen: gemini returned no text")
)

// GeminiConfig describes the Gemini generateContent endpoint.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GeminiClient generates documentation through the Gemini API.
type GeminiClient struct {
	models *genai.Models
	model  string
	logger *zap.Logger
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient validates the configuration and constructs the client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errMissingModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultGeminiTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL + "/",
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("textgen: creating gemini client: %w", err)
	}

	return &GeminiClient{
		models: client.Models,
		model:  model,
		logger: logger,
	}, nil
}

// Generate asks Gemini for documentation of one file. Failures are logged and
// returned as a Markdown error block naming the file.
func (c *GeminiClient) Generate(ctx context.Context, source string, fileName string) string {
	start := time.Now()
	c.logger.Info("generating documentation", zap.String("file", fileName), zap.String("model", c.model))

	text, err := c.generate(ctx, BuildPrompt(source, fileName))
	if err != nil {
		c.logger.Error("documentation generation failed",
			zap.String("file", fileName),
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return FailureMarkdown(fileName)
	}

	c.logger.Debug("documentation generated",
		zap.String("file", fileName),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyCandidates
	}

	var builder strings.Builder
	for _, candidatePart := range resp.Candidates[0].Content.Parts {
		if candidatePart == nil {
			continue
		}
		builder.WriteString(candidatePart.Text)
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errEmptyCandidates
	}
	return text, nil
}
