package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/garnizeh/prepcoach/internal/config"
	"github.com/garnizeh/prepcoach/internal/db"
)

// VACUUM INTO writes a consistent copy even while the server holds the file.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	out := flag.String("out", "", "Backup file (default <database_path>.bak)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("config error", slog.Any("err", err))
		os.Exit(1)
	}
	dst := *out
	if dst == "" {
		dst = cfg.DatabasePath + ".bak"
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		logger.Error("remove old backup", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("open database", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	if _, err := database.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		logger.Error("backup failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("database backup completed", slog.String("path", dst))
}
