package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/garnizeh/prepcoach/internal/config"
)

// Restore replaces the configured database with a backup. Stop the server first.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	in := flag.String("in", "", "Backup file (default <database_path>.bak)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("config error", slog.Any("err", err))
		os.Exit(1)
	}
	src := *in
	if src == "" {
		src = cfg.DatabasePath + ".bak"
	}

	if err := restore(src, cfg.DatabasePath); err != nil {
		logger.Error("restore failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("database restore completed", slog.String("from", src), slog.String("to", cfg.DatabasePath))
}

// restore copies src next to dst and renames it into place so a failed copy
// never leaves a truncated database behind.
func restore(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	tmp := dst + ".restore"
	dstFile, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Rename(tmp, dst)
}
