package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/handiism/gofile-downloader/internal/config"
	"github.com/handiism/gofile-downloader/internal/download"
	"github.com/handiism/gofile-downloader/internal/gofile"
	apihttp "github.com/handiism/gofile-downloader/internal/http"
	"github.com/handiism/gofile-downloader/internal/tracker"
	"github.com/handiism/gofile-downloader/internal/transfer"
	"github.com/handiism/gofile-downloader/internal/web"
)

const (
	openTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// App wires the downloader together: logger, tracker store, resolver,
// transfer worker, manager and, for the dashboard, the HTTP server.
type App struct {
	cfg     *config.Settings
	log     *slog.Logger
	store   tracker.Store
	manager *download.Manager
	srv     *http.Server
}

// LoadSettings reads the config file, applies the environment and
// validates the result.
func LoadSettings(cfgPath, envFile string) (*config.Settings, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg *config.Settings, w io.Writer) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, lo)), nil
	}
	return slog.New(slog.NewTextHandler(w, lo)), nil
}

// New validates cfg and builds every component. Logs go to logOut.
// onProgress may be nil.
func New(cfg *config.Settings, logOut io.Writer, onProgress func(download.ProgressEvent)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := NewLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create base directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	store, err := tracker.Open(ctx, cfg.StateURL, log)
	if err != nil {
		return nil, fmt.Errorf("cannot open tracker store: %w", err)
	}

	policy := cfg.RetryPolicy()
	client := apihttp.NewClient(apihttp.Options{
		Timeout:   cfg.RequestTimeout,
		UserAgent: apihttp.DefaultOptions().UserAgent,
	})
	resolver := gofile.NewResolver(client, gofile.Options{
		APIURL:        cfg.Resolver.APIURL,
		SiteURL:       cfg.Resolver.SiteURL,
		SiteTokenPath: cfg.Resolver.SiteTokenPath,
		SiteTokenTTL:  cfg.Resolver.SiteTokenTTL,
		MaxDepth:      cfg.Resolver.MaxDepth,
		Retry:         policy,
	}, log)
	worker := transfer.NewWorker(client, afero.NewOsFs(), resolver, log)

	manager := download.NewManager(download.Config{
		BaseDir:        cfg.BaseDir,
		Workers:        cfg.Workers,
		ChunkSize:      cfg.ChunkSize,
		Retry:          policy,
		ThrottleKBs:    cfg.ThrottleKBs,
		Retries:        max(cfg.Retry.Attempts-1, 0),
		Incremental:    cfg.Incremental,
		FolderPatterns: cfg.FolderPatterns,
	}, resolver, worker, store, afero.NewOsFs(), log, onProgress)

	if cfg.Notify.WebhookURL != "" {
		manager.SetNotifier(download.NewWebhookNotifier(client, cfg.Notify.WebhookURL, download.NewLogNotifier(log)))
	}

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		manager: manager,
	}, nil
}

func (a *App) Manager() *download.Manager {
	return a.manager
}

func (a *App) Logger() *slog.Logger {
	return a.log
}

// Serve runs the dashboard on cfg.Listen until Stop is called.
func (a *App) Serve() error {
	handler, err := web.NewRouter(a.manager, a.cfg.Auth, a.log)
	if err != nil {
		return err
	}

	a.srv = &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info("Start listen", slog.String("addr", a.cfg.Listen), slog.String("base_dir", a.cfg.BaseDir))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("cannot serve on %s: %w", a.cfg.Listen, err)
	}
	return nil
}

// Stop shuts the server down, cancels running tasks and closes the store.
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Warn("Cannot shut down server", slog.Any("error", err))
		}
	}
	if err := a.manager.Shutdown(ctx); err != nil {
		a.log.Warn("Tasks still running at shutdown", slog.Any("error", err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Cannot close tracker store", slog.Any("error", err))
	}
}
