package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"expiry_tracker/internal/bot"
	"expiry_tracker/internal/config"
	"expiry_tracker/internal/dispatch"
	"expiry_tracker/internal/scheduler"
	"expiry_tracker/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(b, cfg.NotifyRate, log)
	sched := scheduler.New(store, dispatcher, cfg.Location, log)
	sched.SetTickInterval(cfg.CheckInterval)
	b.Attach(dispatcher, sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "check_interval", cfg.CheckInterval, "timezone", cfg.Location.String())

	sched.Start(ctx)
	b.Run(ctx)
	sched.Stop()

	log.Info("bot stopped")
}

// newLogger accepts the slog level names (debug, info, warn, error) in any
// case and falls back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
