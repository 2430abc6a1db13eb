// Package bot implements the application orchestrator: it owns the gateway
// connection lifecycle, initializes destination rooms per guild, and runs the
// live router, the backfill scan, and the scheduler side by side.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"linkherd/internal/backfill"
	"linkherd/internal/config"
	"linkherd/internal/platform"
	"linkherd/internal/rooms"
	"linkherd/internal/router"
	"linkherd/internal/store"
)

// Bot wires all components together and manages their lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	discord   *platform.Discord
	registry  *rooms.Registry
	router    *router.Router
	scanner   *backfill.Scanner
	scheduler *Scheduler
	store     store.Store
}

// New creates a Bot with all required dependencies.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	discord *platform.Discord,
	registry *rooms.Registry,
	rtr *router.Router,
	scanner *backfill.Scanner,
	scheduler *Scheduler,
	st store.Store,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot"),
		cfg:       cfg,
		discord:   discord,
		registry:  registry,
		router:    rtr,
		scanner:   scanner,
		scheduler: scheduler,
		store:     st,
	}
}

// Run connects to the gateway and blocks until the context is cancelled or a
// component fails.
func (b *Bot) Run(ctx context.Context) error {
	// Register before opening so no delivery is missed.
	b.discord.OnMessageCreate(func(m *discordgo.MessageCreate) {
		b.router.HandleMessage(ctx, m.Message)
	})

	if err := b.discord.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.discord.Close(); err != nil {
			b.logger.Error("Error closing gateway connection", "error", err)
		}
	}()

	guilds := b.discord.GuildIDs()
	b.logger.Info("Connected", "guilds", len(guilds))

	// Destination rooms resolve before the router or scanner touch them.
	for _, guildID := range guilds {
		if err := b.registry.EnsureAll(guildID); err != nil {
			b.logger.Error("Destination init incomplete for guild",
				"guild_id", guildID, "error", err)
		}
	}

	if err := b.scheduler.Daily("sql_maintenance", b.store.RunSQLMaintenance); err != nil {
		b.logger.Error("Failed to register maintenance task", "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return err
		}
		<-gCtx.Done()
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.runBackfill(gCtx, guilds)
		return nil
	})

	g.Go(func() error {
		// The gateway dispatches events on its own goroutines; this just
		// holds the group open until shutdown.
		<-gCtx.Done()
		return nil
	})

	b.logger.Info("Bot running, waiting for shutdown signal")
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runBackfill scans each guild sequentially. Failures are contained per
// guild: the bot keeps serving live traffic regardless.
func (b *Bot) runBackfill(ctx context.Context, guilds []string) {
	if !b.cfg.Backfill.Enabled {
		b.logger.Info("Backfill disabled, skipping historical scan")
		return
	}
	for _, guildID := range guilds {
		total, err := b.scanner.Run(ctx, guildID)
		if err != nil {
			b.logger.Error("Backfill failed for guild", "guild_id", guildID, "error", err)
			continue
		}
		if count, err := b.store.CountRelocations(ctx, guildID, true); err == nil {
			b.logger.Info("Backfill report",
				"guild_id", guildID, "relocated_this_run", total, "audited_backfill_total", count)
		}
	}
}
