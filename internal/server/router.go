package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	errMissingSessionIssuer    = errors.New("session issuer dependency required")
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingOAuthProvider    = errors.New("oauth provider dependency required")
	errMissingUserService      = errors.New("user service dependency required")
	errMissingRepositories     = errors.New("repository service dependency required")
	errMissingDocuments        = errors.New("document store dependency required")
	errMissingGenerator        = errors.New("documentation pipeline dependency required")
	errMissingCodeHost         = errors.New("code host factory dependency required")
)

type SessionIssuer interface {
	Issue(subject auth.SessionSubject) (string, time.Time, error)
	TTL() time.Duration
}

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (auth.GitHubProfile, *oauth2.Token, error)
}

type UserService interface {
	UpsertFromProfile(ctx context.Context, profile users.Profile) (users.User, error)
	Get(ctx context.Context, userID string) (users.User, error)
}

type RepositoryService interface {
	ToggleActivation(ctx context.Context, userID string, request repos.ActivationRequest) (repos.ActivationResult, error)
	ListForUser(ctx context.Context, userID string) ([]repos.Repository, error)
	ListActiveForUser(ctx context.Context, userID string) ([]repos.Repository, error)
	GetForUser(ctx context.Context, userID, repositoryID string) (repos.Repository, error)
	Delete(ctx context.Context, userID, repositoryID string) error
}

type DocumentStore interface {
	ListForRepository(ctx context.Context, repositoryID string) ([]docs.Document, error)
	CountByRepository(ctx context.Context, repositoryID string) (int64, error)
	DeleteForRepository(ctx context.Context, repositoryID string) (int64, error)
}

type DocumentationGenerator interface {
	Generate(ctx context.Context, request docs.GenerateRequest) (docs.Result, error)
}

type CodeHostFactory interface {
	ForToken(token string) codehost.Client
}

type Dependencies struct {
	Sessions       SessionIssuer
	Validator      SessionValidator
	OAuth          OAuthProvider
	Users          UserService
	Repositories   RepositoryService
	Documents      DocumentStore
	Generator      DocumentationGenerator
	CodeHost       CodeHostFactory
	Realtime       *RealtimeDispatcher
	AllowedOrigins []string
	SecureCookies  bool
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessionIssuer
	case deps.Validator == nil:
		return nil, errMissingSessionValidator
	case deps.OAuth == nil:
		return nil, errMissingOAuthProvider
	case deps.Users == nil:
		return nil, errMissingUserService
	case deps.Repositories == nil:
		return nil, errMissingRepositories
	case deps.Documents == nil:
		return nil, errMissingDocuments
	case deps.Generator == nil:
		return nil, errMissingGenerator
	case deps.CodeHost == nil:
		return nil, errMissingCodeHost
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	handler := &httpHandler{
		sessions:          deps.Sessions,
		validator:         deps.Validator,
		oauth:             deps.OAuth,
		users:             deps.Users,
		repositories:      deps.Repositories,
		documents:         deps.Documents,
		generator:         deps.Generator,
		codeHost:          deps.CodeHost,
		realtime:          realtime,
		markdown:          newMarkdownRenderer(),
		secureCookies:     deps.SecureCookies,
		heartbeatInterval: realtimeHeartbeatInterval,
		logger:            logger,
	}

	templates, err := template.New("pages").Funcs(handler.templateFuncs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.SetHTMLTemplate(templates)
	router.Use(handler.sessionGate)

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", handler.handleLandingPage)
	router.GET("/login", handler.handleLoginPage)
	router.GET("/dashboard", handler.handleDashboardPage)
	router.GET("/repos/:id/docs", handler.handleDocumentsPage)
	router.GET("/settings", handler.handleSettingsPage)

	authGroup := router.Group("/auth")
	authGroup.GET("/github/login", handler.handleGitHubLogin)
	authGroup.GET("/github/callback", handler.handleGitHubCallback)
	authGroup.POST("/logout", handler.handleLogout)

	api := router.Group("/api")
	api.GET("/session", handler.handleSession)
	api.GET("/repos", handler.handleListRepositories)
	api.POST("/repos/activate", handler.handleActivateRepository)
	api.DELETE("/repos/:id", handler.handleDeleteRepository)
	api.GET("/repos/:id/documents", handler.handleListDocuments)
	api.DELETE("/repos/:id/documents", handler.handleClearDocuments)
	api.GET("/repos/:id/commits", handler.handleListCommits)
	api.GET("/repos/:id/commits/:sha", handler.handleCommitDetails)
	api.GET("/github/repos", handler.handleListGitHubRepositories)
	api.POST("/docs/generate", handler.handleGenerateDocs)
	api.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	sessions          SessionIssuer
	validator         SessionValidator
	oauth             OAuthProvider
	users             UserService
	repositories      RepositoryService
	documents         DocumentStore
	generator         DocumentationGenerator
	codeHost          CodeHostFactory
	realtime          *RealtimeDispatcher
	markdown          *markdownRenderer
	secureCookies     bool
	heartbeatInterval time.Duration
	logger            *zap.Logger
}

// corsMiddleware is a no-op without configured origins; the pages call the API same-origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
