package main

import (
	"context"
	"flag"
	"io/fs"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/prepcoach/db"
	"github.com/garnizeh/prepcoach/internal/config"
	"github.com/garnizeh/prepcoach/internal/db"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	noSeed := flag.Bool("no-seed", false, "Skip loading the starter question catalog")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("config error", slog.Any("err", err))
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("db init error", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	var seed fs.FS = dbfs.SeedFiles
	if *noSeed {
		seed = nil
	}
	if err := db.Migrate(ctx, database, dbfs.Migrations, seed); err != nil {
		logger.Error("migration error", slog.Any("err", err))
		os.Exit(1)
	}

	var questions int
	if err := database.QueryRow(ctx, `SELECT COUNT(*) FROM interview_questions`).Scan(&questions); err != nil {
		logger.Error("count questions", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("database initialized", slog.String("path", cfg.DatabasePath), slog.Int("questions", questions))
}
