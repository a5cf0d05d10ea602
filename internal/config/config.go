package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "AUTODOCS"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultPublicURL        = "http://localhost:8080"
	defaultDatabasePath     = "autodocs.db"
	defaultLogLevel         = "info"
	defaultCookieName       = "autodocs_session"
	defaultSessionTTL       = 24 * time.Hour
	defaultGeminiModel      = "gemini-1.5-flash"
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	defaultGeminiTimeout    = 60 * time.Second
	defaultGeneratorBackend = GeneratorAI
	defaultMaxFiles         = 5
	defaultMaxSourceChars   = 3000
)

// Documentation generator backends.
const (
	GeneratorAI        = "ai"
	GeneratorHeuristic = "heuristic"
)

// ErrInvalidConfig is the sentinel every ValidationError unwraps to.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ValidationError reports the first configuration key that failed validation.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	PublicURL      string
	AllowedOrigins []string
	DatabasePath   string
	LogLevel       string

	SessionSigningSecret string
	SessionCookieName    string
	SessionTTL           time.Duration
	SecureCookie         bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubAPIBaseURL   string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GeminiTimeout time.Duration

	Generator      string
	MaxFiles       int
	MaxSourceChars int
}

// CallbackURL is the OAuth redirect target registered with GitHub.
func (c AppConfig) CallbackURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/auth/github/callback"
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.public_url", defaultPublicURL)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl", defaultSessionTTL)
	configViper.SetDefault("session.secure_cookie", false)
	configViper.SetDefault("gemini.model", defaultGeminiModel)
	configViper.SetDefault("gemini.base_url", defaultGeminiBaseURL)
	configViper.SetDefault("gemini.timeout", defaultGeminiTimeout)
	configViper.SetDefault("docs.generator", defaultGeneratorBackend)
	configViper.SetDefault("docs.max_files", defaultMaxFiles)
	configViper.SetDefault("docs.max_source_chars", defaultMaxSourceChars)
}

// ReadFile merges a configuration file into the viper instance. An explicit
// path must exist and parse; without one, a missing default file is ignored.
func ReadFile(configViper *viper.Viper, path string) error {
	if path != "" {
		configViper.SetConfigFile(path)
		if err := configViper.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		return nil
	}

	if err := configViper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFound) {
			return nil
		}
		return fmt.Errorf("config: reading config file: %w", err)
	}
	return nil
}

// Load parses runtime configuration from viper and validates it.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		PublicURL:            configViper.GetString("http.public_url"),
		AllowedOrigins:       splitList(configViper.GetStringSlice("http.allowed_origins")),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionTTL:           configViper.GetDuration("session.ttl"),
		SecureCookie:         configViper.GetBool("session.secure_cookie"),
		GitHubClientID:       configViper.GetString("github.client_id"),
		GitHubClientSecret:   configViper.GetString("github.client_secret"),
		GitHubAPIBaseURL:     configViper.GetString("github.api_base_url"),
		GeminiAPIKey:         configViper.GetString("gemini.api_key"),
		GeminiModel:          configViper.GetString("gemini.model"),
		GeminiBaseURL:        configViper.GetString("gemini.base_url"),
		GeminiTimeout:        configViper.GetDuration("gemini.timeout"),
		Generator:            strings.ToLower(strings.TrimSpace(configViper.GetString("docs.generator"))),
		MaxFiles:             configViper.GetInt("docs.max_files"),
		MaxSourceChars:       configViper.GetInt("docs.max_source_chars"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"session.signing_secret", c.SessionSigningSecret},
		{"session.cookie_name", c.SessionCookieName},
		{"database.path", c.DatabasePath},
		{"http.public_url", c.PublicURL},
		{"github.client_id", c.GitHubClientID},
		{"github.client_secret", c.GitHubClientSecret},
	}
	for _, entry := range required {
		if strings.TrimSpace(entry.value) == "" {
			return &ValidationError{Key: entry.key, Reason: "is required"}
		}
	}

	switch c.Generator {
	case GeneratorAI:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return &ValidationError{Key: "gemini.api_key", Reason: "is required when docs.generator is ai"}
		}
		if strings.TrimSpace(c.GeminiModel) == "" {
			return &ValidationError{Key: "gemini.model", Reason: "is required when docs.generator is ai"}
		}
	case GeneratorHeuristic:
	default:
		return &ValidationError{Key: "docs.generator", Reason: fmt.Sprintf("must be %q or %q", GeneratorAI, GeneratorHeuristic)}
	}

	if c.SessionTTL <= 0 {
		return &ValidationError{Key: "session.ttl", Reason: "must be positive"}
	}
	if c.MaxFiles <= 0 {
		return &ValidationError{Key: "docs.max_files", Reason: "must be positive"}
	}
	if c.MaxSourceChars <= 0 {
		return &ValidationError{Key: "docs.max_source_chars", Reason: "must be positive"}
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
