package docs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate document schema: %v", err)
	}
	store, err := NewStore(StoreConfig{Database: db, IDProvider: &sequenceIDGenerator{prefix: "doc-"}})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, db
}

type stubRepositories struct {
	mu         sync.Mutex
	repository repos.Repository
	syncedWith []string
}

func (s *stubRepositories) GetForUser(_ context.Context, userID, repositoryID string) (repos.Repository, error) {
	if userID != s.repository.UserID || repositoryID != s.repository.ID {
		return repos.Repository{}, repos.ErrRepositoryNotFound
	}
	return s.repository, nil
}

func (s *stubRepositories) MarkSynced(_ context.Context, _ string, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncedWith = append(s.syncedWith, language)
	return nil
}

type stubClient struct {
	entries      []codehost.ContentEntry
	files        map[string]string
	languages    map[string]int
	languagesErr error
	fetched      []string
}

func (c *stubClient) ListRepositories(context.Context) ([]codehost.Repository, error) {
	return nil, nil
}

func (c *stubClient) ListContents(context.Context, string, string, string) ([]codehost.ContentEntry, error) {
	return c.entries, nil
}

func (c *stubClient) GetFileContent(_ context.Context, _, _, path string) (string, error) {
	c.fetched = append(c.fetched, path)
	content, ok := c.files[path]
	if !ok {
		return "", codehost.ErrNotFound
	}
	return content, nil
}

func (c *stubClient) ListLanguages(context.Context, string, string) (map[string]int, error) {
	return c.languages, c.languagesErr
}

func (c *stubClient) ListCommits(context.Context, string, string, int) ([]codehost.Commit, error) {
	return nil, nil
}

func (c *stubClient) GetCommitDetails(context.Context, string, string, string) (codehost.CommitDetails, error) {
	return codehost.CommitDetails{}, nil
}

type stubFactory struct {
	client *stubClient
	tokens []string
}

func (f *stubFactory) ForToken(token string) codehost.Client {
	f.tokens = append(f.tokens, token)
	return f.client
}

type recordingGenerator struct {
	inputs []string
}

func (g *recordingGenerator) Generate(_ context.Context, source string, fileName string) string {
	g.inputs = append(g.inputs, source)
	return fmt.Sprintf("Docs for %s.\n\n## Details\n\n%d chars", fileName, len(source))
}

func fileEntry(name string) codehost.ContentEntry {
	return codehost.ContentEntry{Name: name, Path: name, Type: codehost.EntryTypeFile}
}

func TestSelectCandidatesKeepsOrderAndFiltersExtensions(t *testing.T) {
	entries := []codehost.ContentEntry{
		fileEntry("a.ts"),
		fileEntry("b.png"),
		fileEntry("README.md"),
		fileEntry("c.py"),
	}

	candidates := SelectCandidates(entries, 5)

	want := []string{"a.ts", "README.md", "c.py"}
	if len(candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(candidates))
	}
	for index, name := range want {
		if candidates[index].Name != name {
			t.Fatalf("candidate %d: expected %s, got %s", index, name, candidates[index].Name)
		}
	}
}

func TestSelectCandidatesRespectsCapAndSkipsDirectories(t *testing.T) {
	entries := []codehost.ContentEntry{
		{Name: "src.go", Path: "src.go", Type: codehost.EntryTypeDir},
	}
	for index := 0; index < 8; index++ {
		entries = append(entries, fileEntry(fmt.Sprintf("file%d.go", index)))
	}

	candidates := SelectCandidates(entries, 5)
	if len(candidates) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(candidates))
	}
	if candidates[0].Name != "file0.go" {
		t.Fatalf("expected directories to be skipped, got %s first", candidates[0].Name)
	}
}

func TestSelectCandidatesNonPositiveLimit(t *testing.T) {
	entries := []codehost.ContentEntry{fileEntry("a.go"), fileEntry("b.py")}
	for _, limit := range []int{0, -1} {
		candidates := SelectCandidates(entries, limit)
		if candidates == nil || len(candidates) != 0 {
			t.Fatalf("limit %d: expected empty candidates, got %v", limit, candidates)
		}
	}
}

func TestIsDocumentable(t *testing.T) {
	testCases := map[string]bool{
		"x.js":       true,
		"x.JSX":      true,
		"x.ts":       true,
		"x.tsx":      true,
		"x.py":       true,
		"x.go":       true,
		"x.java":     true,
		"x.cs":       true,
		"x.rb":       true,
		"x.php":      true,
		"x.rs":       true,
		"x.md":       true,
		"x.json":     true,
		"x.yml":      true,
		"x.yaml":     true,
		"x.bin":      false,
		"Makefile":   false,
		"readme.txt": true,
		"README":     true,
	}
	for name, want := range testCases {
		if got := IsDocumentable(name); got != want {
			t.Fatalf("IsDocumentable(%q) = %t, want %t", name, got, want)
		}
	}
}

func TestTypeForFile(t *testing.T) {
	testCases := map[string]string{
		"README.md":  TypeReadme,
		"index.TS":   "ts",
		"Dockerfile": TypeCode,
	}
	for name, want := range testCases {
		if got := TypeForFile(name); got != want {
			t.Fatalf("TypeForFile(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestTruncateRunesCountsCharacters(t *testing.T) {
	if got := TruncateRunes("héllo wörld", 5); got != "héllo" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateRunes("short", 100); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateRunes("anything", 0); got != "" {
		t.Fatalf("expected empty string for zero limit, got %q", got)
	}
}

func TestPrimaryLanguagePrefersLargestThenName(t *testing.T) {
	if got := PrimaryLanguage(map[string]int{"Go": 100, "Shell": 900, "HTML": 10}); got != "Shell" {
		t.Fatalf("expected Shell, got %q", got)
	}
	if got := PrimaryLanguage(map[string]int{"Rust": 50, "C": 50}); got != "C" {
		t.Fatalf("expected C on tie, got %q", got)
	}
	if got := PrimaryLanguage(nil); got != "" {
		t.Fatalf("expected empty language, got %q", got)
	}
}

func TestUpsertTwiceKeepsOneRowWithLatestContent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, Document{RepositoryID: "repo-1", FilePath: "a.ts", FileName: "a.ts", Content: "first"})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := store.Upsert(ctx, Document{RepositoryID: "repo-1", FilePath: "a.ts", FileName: "a.ts", Content: "second"})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected the row id to be stable, got %s then %s", first.ID, second.ID)
	}
	count, err := store.CountByRepository(ctx, "repo-1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
	documents, err := store.ListForRepository(ctx, "repo-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(documents) != 1 || documents[0].Content != "second" {
		t.Fatalf("expected the second content, got %+v", documents)
	}
	if documents[0].Type != "ts" {
		t.Fatalf("expected derived type ts, got %q", documents[0].Type)
	}
}

func TestUpsertRejectsIncompleteDocument(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Upsert(context.Background(), Document{RepositoryID: "repo-1", Content: "x"})
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestDeleteForRepositoryOnlyTouchesThatRepository(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, document := range []Document{
		{RepositoryID: "repo-1", FilePath: "a.ts", Content: "a"},
		{RepositoryID: "repo-1", FilePath: "b.ts", Content: "b"},
		{RepositoryID: "repo-2", FilePath: "a.ts", Content: "c"},
	} {
		if _, err := store.Upsert(ctx, document); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	removed, err := store.DeleteForRepository(ctx, "repo-1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected two removed rows, got %d", removed)
	}
	remaining, err := store.CountByRepository(ctx, "repo-2")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected other repository to keep its document, got %d", remaining)
	}
}

func newTestPipeline(t *testing.T, client *stubClient, generator *recordingGenerator, maxFiles, maxChars int) (*Pipeline, *Store, *stubRepositories, *stubFactory) {
	t.Helper()
	store, _ := newTestStore(t)
	repositories := &stubRepositories{repository: repos.Repository{ID: "repo-1", UserID: "user-1", FullName: "octo/widgets"}}
	factory := &stubFactory{client: client}
	pipeline, err := NewPipeline(PipelineConfig{
		Repositories:   repositories,
		Clients:        factory,
		Generator:      generator,
		Documents:      store,
		MaxFiles:       maxFiles,
		MaxSourceChars: maxChars,
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return pipeline, store, repositories, factory
}

func TestPipelineDocumentsCandidatesInOrder(t *testing.T) {
	client := &stubClient{
		entries: []codehost.ContentEntry{fileEntry("a.ts"), fileEntry("b.png"), fileEntry("README.md"), fileEntry("c.py")},
		files: map[string]string{
			"a.ts":      "export const a = 1;",
			"README.md": "# Widgets",
			"c.py":      "print('c')",
		},
		languages: map[string]int{"TypeScript": 400, "Python": 100},
	}
	generator := &recordingGenerator{}
	pipeline, store, repositories, factory := newTestPipeline(t, client, generator, 5, 3000)

	result, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", AccessToken: "gho_token", RepositoryID: "repo-1"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if !result.Success || result.ProcessedCount != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if strings.Join(client.fetched, ",") != "a.ts,README.md,c.py" {
		t.Fatalf("unexpected fetch order %v", client.fetched)
	}
	if len(factory.tokens) != 1 || factory.tokens[0] != "gho_token" {
		t.Fatalf("expected the session token to reach the client factory, got %v", factory.tokens)
	}
	if len(repositories.syncedWith) != 1 || repositories.syncedWith[0] != "TypeScript" {
		t.Fatalf("expected sync with TypeScript, got %v", repositories.syncedWith)
	}

	documents, err := store.ListForRepository(context.Background(), "repo-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(documents) != 3 {
		t.Fatalf("expected three documents, got %d", len(documents))
	}
	for _, document := range documents {
		if document.Summary == nil || !strings.HasPrefix(*document.Summary, "Docs for ") {
			t.Fatalf("expected summary from first paragraph, got %v", document.Summary)
		}
	}
	if documents[0].FilePath != "README.md" || documents[0].Type != TypeReadme {
		t.Fatalf("unexpected readme document %+v", documents[0])
	}
}

func TestPipelineSkipsFailingFilesAndTruncatesInput(t *testing.T) {
	client := &stubClient{
		entries: []codehost.ContentEntry{fileEntry("missing.go"), fileEntry("long.go")},
		files: map[string]string{
			"long.go": strings.Repeat("é", 50),
		},
		languagesErr: codehost.ErrNotFound,
	}
	generator := &recordingGenerator{}
	pipeline, store, repositories, _ := newTestPipeline(t, client, generator, 5, 10)

	result, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", AccessToken: "token", RepositoryID: "repo-1"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.ProcessedCount != 1 || len(result.SkippedFiles) != 1 || result.SkippedFiles[0] != "missing.go" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(generator.inputs) != 1 || generator.inputs[0] != strings.Repeat("é", 10) {
		t.Fatalf("expected a 10 rune input, got %q", generator.inputs)
	}
	if len(repositories.syncedWith) != 1 || repositories.syncedWith[0] != "" {
		t.Fatalf("expected sync without language, got %v", repositories.syncedWith)
	}
	count, err := store.CountByRepository(context.Background(), "repo-1")
	if err != nil || count != 1 {
		t.Fatalf("expected one stored document, got %d (%v)", count, err)
	}
}

func TestPipelineFailsWithoutCandidates(t *testing.T) {
	client := &stubClient{entries: []codehost.ContentEntry{fileEntry("logo.png")}}
	pipeline, _, repositories, _ := newTestPipeline(t, client, &recordingGenerator{}, 5, 3000)

	_, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", AccessToken: "token", RepositoryID: "repo-1"})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if len(repositories.syncedWith) != 0 {
		t.Fatalf("expected no sync on failure")
	}
}

func TestPipelineRejectsForeignRepositoryAndMissingToken(t *testing.T) {
	pipeline, _, _, factory := newTestPipeline(t, &stubClient{}, &recordingGenerator{}, 5, 3000)

	_, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-2", AccessToken: "token", RepositoryID: "repo-1"})
	if !errors.Is(err, repos.ErrRepositoryNotFound) {
		t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
	}

	_, err = pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", RepositoryID: "repo-1"})
	if !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
	if len(factory.tokens) != 0 {
		t.Fatalf("expected no code-host client to be created")
	}
}

func TestPipelineCountsRunsAndFiles(t *testing.T) {
	client := &stubClient{
		entries: []codehost.ContentEntry{fileEntry("missing.go"), fileEntry("main.go")},
		files:   map[string]string{"main.go": "package main"},
	}
	pipeline, _, _, _ := newTestPipeline(t, client, &recordingGenerator{}, 5, 3000)

	succeeded := testutil.ToFloat64(runCounter.WithLabelValues(runOutcomeSucceeded))
	failed := testutil.ToFloat64(runCounter.WithLabelValues(runOutcomeFailed))
	processed := testutil.ToFloat64(fileCounter.WithLabelValues(fileResultProcessed))
	skipped := testutil.ToFloat64(fileCounter.WithLabelValues(fileResultSkipped))

	if _, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", AccessToken: "token", RepositoryID: "repo-1"}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := pipeline.Generate(context.Background(), GenerateRequest{UserID: "user-1", RepositoryID: "repo-1"}); err == nil {
		t.Fatalf("expected a failed run without a token")
	}

	if delta := testutil.ToFloat64(runCounter.WithLabelValues(runOutcomeSucceeded)) - succeeded; delta != 1 {
		t.Fatalf("expected one succeeded run, got %v", delta)
	}
	if delta := testutil.ToFloat64(runCounter.WithLabelValues(runOutcomeFailed)) - failed; delta != 1 {
		t.Fatalf("expected one failed run, got %v", delta)
	}
	if delta := testutil.ToFloat64(fileCounter.WithLabelValues(fileResultProcessed)) - processed; delta != 1 {
		t.Fatalf("expected one processed file, got %v", delta)
	}
	if delta := testutil.ToFloat64(fileCounter.WithLabelValues(fileResultSkipped)) - skipped; delta != 1 {
		t.Fatalf("expected one skipped file, got %v", delta)
	}
}
