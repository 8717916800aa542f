package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cvlens/cvlens/internal/analysis"
	"github.com/cvlens/cvlens/internal/api"
	"github.com/cvlens/cvlens/internal/config"
	"github.com/cvlens/cvlens/internal/logging"
	"github.com/cvlens/cvlens/internal/notify"
	"github.com/cvlens/cvlens/internal/repository"
	"github.com/cvlens/cvlens/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional; real environment variables still win.
	_ = godotenv.Load()

	// Resolve the XML config next to the executable unless overridden
	configPath := os.Getenv("CVLENS_CONFIG")
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "cvlens.config.xml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(cfg.Advanced.LogLevel)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	repo, err := repository.NewDuckRepository(cfg.Storage.DatabasePath, repository.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	}, log)
	if err != nil {
		log.Fatalw("failed to open database", "path", cfg.Storage.DatabasePath, "error", err)
	}

	store, err := buildStore(context.Background(), cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
	}

	// In-process subscribers always get transitions; AMQP joins in when
	// a broker is configured.
	hub := notify.NewHub()
	var notifier notify.Notifier = hub
	if cfg.Notify.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.Notify.AMQPURL, cfg.Notify.Exchange, log)
		if err != nil {
			log.Warnw("message broker unavailable, continuing without it", "error", err)
		} else {
			notifier = notify.NewMulti(hub, amqpNotifier)
		}
	}

	rules, err := analysis.LoadRules(cfg.Analysis.RulesPath)
	if err != nil {
		log.Warnw("failed to load scoring rules, using built-in defaults", "path", cfg.Analysis.RulesPath, "error", err)
		rules = nil
	}

	pipeline := analysis.NewPipeline(repo, store, analysis.NewRuleAnalyzer(rules), notifier, log, analysis.Options{
		Workers: cfg.Analysis.MaxConcurrentAnalyses,
	})

	// Sweep finished jobs out of the progress registry in the background
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Analysis.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				pipeline.Jobs().CleanupOldJobs(time.Duration(cfg.Analysis.JobRetentionMinutes) * time.Minute)
			}
		}
	}()

	e := echo.New()
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.Contains(path, "/ws/") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			// Streams and uploads run longer than any sane timeout
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.Contains(path, "/ws/") ||
				(c.Request().Method == http.MethodPost && path == "/api/resumes") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	// Compression breaks hijacked and streamed responses, skip those
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "/ws/") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Repo:        repo,
		Store:       store,
		Pipeline:    pipeline,
		Jobs:        pipeline.Jobs(),
		Statuses:    hub,
		Log:         log,
		Version:     Version,
		AllowDelete: cfg.Server.EnableDelete,
	})
	api.RegisterRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "local"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           CVLens Resume Analysis Server                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Storage:    %-45s║\n", backend)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Database:  %-46s║\n", cfg.Storage.DatabasePath)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop intake first so the pipeline can drain before its stores close
	var result *multierror.Error
	if err := e.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http server: %w", err))
	}
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("analysis pipeline: %w", err))
	}
	if err := notifier.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("notifier: %w", err))
	}
	if err := repo.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("repository: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Errorw("shutdown finished with errors", "error", err)
		os.Exit(1)
	}
	log.Infow("shutdown complete")
}

// buildStore picks the blob backend the config asks for.
func buildStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	if cfg.Storage.Backend == "minio" {
		m := cfg.Storage.Minio
		return storage.NewMinioStore(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
	}
	return storage.NewLocalStore(cfg.GetUploadDir())
}
