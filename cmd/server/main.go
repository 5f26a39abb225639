package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/prepcoach/api"
	migrations "github.com/garnizeh/prepcoach/db"
	"github.com/garnizeh/prepcoach/internal/auth"
	"github.com/garnizeh/prepcoach/internal/config"
	"github.com/garnizeh/prepcoach/internal/db"
	"github.com/garnizeh/prepcoach/internal/jobservice"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/progress"
	"github.com/garnizeh/prepcoach/internal/repository/sqlite"
	"github.com/garnizeh/prepcoach/internal/storage"
	"github.com/garnizeh/prepcoach/internal/voice"
	"github.com/garnizeh/prepcoach/pkg/jobboard"
	"github.com/garnizeh/prepcoach/pkg/speech"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(*configPath, logger); err != nil {
		logger.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	api.SetLogger(logger)
	jobboard.SetLogger(logger)

	logger.Info("starting prepcoach", slog.String("version", version), slog.String("build_time", buildTime))

	ctx := context.Background()

	d, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := db.Migrate(ctx, d, migrations.Migrations, migrations.SeedFiles); err != nil {
		return err
	}
	repo := sqlite.New(d, logger)

	objects, err := storage.New(ctx, storage.Config{
		Backend:    cfg.Storage.Backend,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		SigningKey: []byte(cfg.JWTSecret),
	})
	if err != nil {
		return err
	}
	if c, ok := objects.(io.Closer); ok {
		defer c.Close()
	}

	transcriber, err := newTranscriber(ctx, cfg.Speech, logger)
	if err != nil {
		return err
	}
	defer transcriber.Close()

	httpClient := jobboard.NewHTTPClient()
	linkedIn, err := jobboard.NewLinkedIn(jobboard.Config(cfg.JobBoards.LinkedIn), httpClient)
	if err != nil {
		return err
	}
	defer linkedIn.Close()
	indeed, err := jobboard.NewIndeed(jobboard.Config(cfg.JobBoards.Indeed), httpClient)
	if err != nil {
		return err
	}
	defer indeed.Close()

	local, _ := objects.(*storage.LocalStorage)

	m := metrics.New()
	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Repo:     repo,
		Auth:     auth.NewService(repo, cfg.JWTSecret, cfg.TokenDuration, logger),
		Progress: progress.New(repo, logger),
		Jobs:     jobservice.New(repo, []jobboard.Provider{linkedIn, indeed}, m, logger),
		Voice:    voice.New(repo, objects, transcriber, m, cfg.Storage.Timeout, logger),
		Objects:  objects,
		Metrics:  m,
		Files:    local,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

func newTranscriber(ctx context.Context, cfg config.SpeechConfig, logger *slog.Logger) (speech.Transcriber, error) {
	if cfg.Backend != "gcp" {
		logger.Warn("speech transcription disabled")
		return speech.Disabled{}, nil
	}
	g, err := speech.NewGoogle(ctx, speech.Config{
		LanguageCode:    cfg.LanguageCode,
		SampleRateHertz: cfg.SampleRateHertz,
		CredentialsFile: cfg.CredentialsFile,
		Timeout:         cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return g, nil
}
