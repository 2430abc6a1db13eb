// Package main contains the entrypoint for the linkherd bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkherd/internal/backfill"
	"linkherd/internal/bot"
	"linkherd/internal/config"
	"linkherd/internal/logger"
	"linkherd/internal/platform"
	"linkherd/internal/rooms"
	"linkherd/internal/router"
	"linkherd/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, store, platform, routing
// engine), starts the bot, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open audit database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer store.CloseDB(db)
	st := store.NewStore(db, log)

	discord, err := platform.NewDiscord(cfg.Discord.Token, log)
	if err != nil {
		log.Error("Failed to create discord session", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	registry := rooms.New(log, discord, cfg.Routing.Channels)
	relocator := router.NewRelocator(log, discord, registry, st)
	notifier := router.NewNotifier(log, discord, sched)
	rtr := router.New(log, discord, registry, relocator, notifier, cfg.Routing)
	scanner := backfill.New(log, discord, registry, relocator, cfg.Backfill, cfg.Routing.PrivateMarker)

	app := bot.New(log, cfg, discord, registry, rtr, scanner, sched, st)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
