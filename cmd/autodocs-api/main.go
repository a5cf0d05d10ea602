package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/config"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/database"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/server"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/summarizer"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/textgen"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autodocs-api",
		Short: "AutoDocs documentation service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	})

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("public-url", defaults.GetString("http.public_url"), "Externally visible base URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("generator", defaults.GetString("docs.generator"), "Documentation generator (ai, heuristic)")
	cmd.PersistentFlags().Int("max-files", defaults.GetInt("docs.max_files"), "Files documented per run")
	cmd.PersistentFlags().Int("max-source-chars", defaults.GetInt("docs.max_source_chars"), "Source characters sent per file")
	cmd.PersistentFlags().Bool("secure-cookie", defaults.GetBool("session.secure_cookie"), "Mark session cookies Secure")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.public_url", "public-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "docs.generator", "generator")
	bindFlag(cmd, "docs.max_files", "max-files")
	bindFlag(cmd, "docs.max_source_chars", "max-source-chars")
	bindFlag(cmd, "session.secure_cookie", "secure-cookie")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	return config.ReadFile(viper.GetViper(), cfgFile)
}

func runMigrations() error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := ids.NewUUIDProvider()

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	repositoryService, err := repos.NewService(repos.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	documentStore, err := docs.NewStore(docs.StoreConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	codeHost, err := codehost.NewFactory(codehost.FactoryConfig{
		BaseURL: appConfig.GitHubAPIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	generator, err := newGenerator(appConfig, logger)
	if err != nil {
		return err
	}

	pipeline, err := docs.NewPipeline(docs.PipelineConfig{
		Repositories:   repositoryService,
		Clients:        codeHost,
		Generator:      generator,
		Documents:      documentStore,
		MaxFiles:       appConfig.MaxFiles,
		MaxSourceChars: appConfig.MaxSourceChars,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	oauthProvider, err := auth.NewGitHubProvider(auth.GitHubOAuthConfig{
		ClientID:     appConfig.GitHubClientID,
		ClientSecret: appConfig.GitHubClientSecret,
		RedirectURL:  appConfig.CallbackURL(),
		APIBaseURL:   appConfig.GitHubAPIBaseURL,
	})
	if err != nil {
		return err
	}

	sessionIssuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		TTL:           appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionIssuer,
		Validator:      sessionValidator,
		OAuth:          oauthProvider,
		Users:          userService,
		Repositories:   repositoryService,
		Documents:      documentStore,
		Generator:      pipeline,
		CodeHost:       codeHost,
		Realtime:       server.NewRealtimeDispatcher(),
		AllowedOrigins: appConfig.AllowedOrigins,
		SecureCookies:  appConfig.SecureCookie,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("public_url", appConfig.PublicURL),
			zap.String("generator", appConfig.Generator),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newGenerator(appConfig config.AppConfig, logger *zap.Logger) (textgen.Generator, error) {
	if appConfig.Generator == config.GeneratorHeuristic {
		logger.Info("using heuristic documentation generator")
		return summarizer.Generator{}, nil
	}
	return textgen.NewGeminiClient(textgen.GeminiConfig{
		APIKey:  appConfig.GeminiAPIKey,
		Model:   appConfig.GeminiModel,
		BaseURL: appConfig.GeminiBaseURL,
		Timeout: appConfig.GeminiTimeout,
		Logger:  logger,
	})
}
