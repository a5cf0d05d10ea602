package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/summarizer"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	prefix string
	next   int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return g.prefix + strconv.Itoa(g.next), nil
}

const (
	testSigningSecret = "server-test-secret"
	testCookieName    = "autodocs_session"
	testAccessToken   = "gho_test_token"
)

type fakeCodeHost struct {
	mu           sync.Mutex
	repositories []codehost.Repository
	entries      []codehost.ContentEntry
	files        map[string]string
	languages    map[string]int
	commits      []codehost.Commit
	listErr      error
	tokens       []string
}

func (f *fakeCodeHost) ForToken(token string) codehost.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f
}

func (f *fakeCodeHost) ListRepositories(context.Context) ([]codehost.Repository, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.repositories, nil
}

func (f *fakeCodeHost) ListContents(context.Context, string, string, string) ([]codehost.ContentEntry, error) {
	return f.entries, nil
}

func (f *fakeCodeHost) GetFileContent(_ context.Context, _, _, path string) (string, error) {
	content, ok := f.files[path]
	if !ok {
		return "", codehost.ErrNotFound
	}
	return content, nil
}

func (f *fakeCodeHost) ListLanguages(context.Context, string, string) (map[string]int, error) {
	return f.languages, nil
}

func (f *fakeCodeHost) ListCommits(_ context.Context, _, _ string, perPage int) ([]codehost.Commit, error) {
	if perPage < len(f.commits) {
		return f.commits[:perPage], nil
	}
	return f.commits, nil
}

func (f *fakeCodeHost) GetCommitDetails(_ context.Context, _, _, sha string) (codehost.CommitDetails, error) {
	for _, commit := range f.commits {
		if commit.SHA == sha {
			return codehost.CommitDetails{Commit: commit}, nil
		}
	}
	return codehost.CommitDetails{}, codehost.ErrNotFound
}

type fakeOAuthProvider struct {
	profile     auth.GitHubProfile
	accessToken string
	exchangeErr error
	codes       []string
}

func (f *fakeOAuthProvider) AuthURL(state string) string {
	return "https://github.example.com/login/oauth/authorize?state=" + state
}

func (f *fakeOAuthProvider) Exchange(_ context.Context, code string) (auth.GitHubProfile, *oauth2.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return auth.GitHubProfile{}, nil, f.exchangeErr
	}
	return f.profile, &oauth2.Token{AccessToken: f.accessToken}, nil
}

type testEnvironment struct {
	handler      http.Handler
	db           *gorm.DB
	issuer       *auth.SessionIssuer
	users        *users.Service
	repositories *repos.Service
	documents    *docs.Store
	codeHost     *fakeCodeHost
	oauth        *fakeOAuthProvider
	realtime     *RealtimeDispatcher
}

type environmentOption func(*Dependencies)

func withAllowedOrigins(origins ...string) environmentOption {
	return func(deps *Dependencies) {
		deps.AllowedOrigins = origins
	}
}

func withLogger(logger *zap.Logger) environmentOption {
	return func(deps *Dependencies) {
		deps.Logger = logger
	}
}

func newTestEnvironment(testContext *testing.T, options ...environmentOption) *testEnvironment {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &repos.Repository{}, &docs.Document{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: &sequenceIDGenerator{prefix: "user-"}})
	if err != nil {
		testContext.Fatalf("failed to create user service: %v", err)
	}
	repositoryService, err := repos.NewService(repos.ServiceConfig{Database: db, IDProvider: &sequenceIDGenerator{prefix: "repo-"}})
	if err != nil {
		testContext.Fatalf("failed to create repository service: %v", err)
	}
	documentStore, err := docs.NewStore(docs.StoreConfig{Database: db, IDProvider: &sequenceIDGenerator{prefix: "doc-"}})
	if err != nil {
		testContext.Fatalf("failed to create document store: %v", err)
	}

	codeHost := &fakeCodeHost{
		repositories: []codehost.Repository{
			{ID: 101, Name: "widgets", FullName: "octo/widgets", URL: "https://github.com/octo/widgets", Language: "Go", UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
			{ID: 102, Name: "gadgets", FullName: "octo/gadgets", URL: "https://github.com/octo/gadgets"},
		},
		entries: []codehost.ContentEntry{
			{Name: "main.go", Path: "main.go", Type: codehost.EntryTypeFile},
			{Name: "logo.png", Path: "logo.png", Type: codehost.EntryTypeFile},
			{Name: "README.md", Path: "README.md", Type: codehost.EntryTypeFile},
		},
		files: map[string]string{
			"main.go":   "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n",
			"README.md": "# Widgets\n\nWidgets for everyone.\n",
		},
		languages: map[string]int{"Go": 1200, "Shell": 40},
		commits: []codehost.Commit{
			{SHA: "abc123", Message: "Initial commit", Author: "octo"},
			{SHA: "def456", Message: "Add widgets", Author: "octo"},
		},
	}

	pipeline, err := docs.NewPipeline(docs.PipelineConfig{
		Repositories:   repositoryService,
		Clients:        codeHost,
		Generator:      summarizer.Generator{},
		Documents:      documentStore,
		MaxFiles:       5,
		MaxSourceChars: 3000,
	})
	if err != nil {
		testContext.Fatalf("failed to create pipeline: %v", err)
	}

	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{SigningSecret: []byte(testSigningSecret), TTL: time.Hour})
	if err != nil {
		testContext.Fatalf("failed to create session issuer: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret), CookieName: testCookieName})
	if err != nil {
		testContext.Fatalf("failed to create session validator: %v", err)
	}

	oauthProvider := &fakeOAuthProvider{
		profile:     auth.GitHubProfile{ID: 4242, Login: "octo", Name: "Octo Cat", Email: "octo@example.com"},
		accessToken: testAccessToken,
	}
	realtime := NewRealtimeDispatcher()

	deps := Dependencies{
		Sessions:     issuer,
		Validator:    validator,
		OAuth:        oauthProvider,
		Users:        userService,
		Repositories: repositoryService,
		Documents:    documentStore,
		Generator:    pipeline,
		CodeHost:     codeHost,
		Realtime:     realtime,
		Logger:       zap.NewNop(),
	}
	for _, option := range options {
		option(&deps)
	}

	handler, err := NewHTTPHandler(deps)
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	return &testEnvironment{
		handler:      handler,
		db:           db,
		issuer:       issuer,
		users:        userService,
		repositories: repositoryService,
		documents:    documentStore,
		codeHost:     codeHost,
		oauth:        oauthProvider,
		realtime:     realtime,
	}
}

// signIn stores a user and returns a session cookie for it.
func (env *testEnvironment) signIn(testContext *testing.T) (*http.Cookie, users.User) {
	testContext.Helper()
	user, err := env.users.UpsertFromProfile(context.Background(), users.Profile{
		GitHubID: 4242,
		Login:    "octo",
		Name:     "Octo Cat",
		Email:    "octo@example.com",
	})
	if err != nil {
		testContext.Fatalf("failed to store user: %v", err)
	}
	token, _, err := env.issuer.Issue(auth.SessionSubject{
		UserID:      user.ID,
		Login:       user.Login,
		Name:        user.Name,
		Email:       user.Email,
		AccessToken: testAccessToken,
	})
	if err != nil {
		testContext.Fatalf("failed to issue session: %v", err)
	}
	return &http.Cookie{Name: testCookieName, Value: token}, user
}
