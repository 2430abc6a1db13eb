// Package backfill replays the relocation logic over a guild's message
// history, one time, up to a fixed cutoff instant. It runs after the
// destination registry is initialized and shares the live router's relocation
// path, so historical links end up exactly where live ones would.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/config"
	"linkherd/internal/platform"
	"linkherd/internal/rooms"
	"linkherd/internal/router"
)

// Scanner paginates channel history backward and relocates historical link
// messages.
type Scanner struct {
	logger    *slog.Logger
	platform  platform.Platform
	registry  *rooms.Registry
	relocator *router.Relocator
	cfg       config.BackfillConfig
	marker    string
}

// New creates a Scanner. marker is the private-room name marker; rooms
// carrying it are never scanned.
func New(logger *slog.Logger, p platform.Platform, registry *rooms.Registry, relocator *router.Relocator, cfg config.BackfillConfig, marker string) *Scanner {
	return &Scanner{
		logger:    logger.With("component", "backfill"),
		platform:  p,
		registry:  registry,
		relocator: relocator,
		cfg:       cfg,
		marker:    marker,
	}
}

// Run scans every eligible text channel of a guild and returns the total
// number of messages relocated. Channel-level failures are logged and
// skipped; the scan keeps going.
func (s *Scanner) Run(ctx context.Context, guildID string) (int, error) {
	log := s.logger.With("guild_id", guildID)
	log.Info("Starting backfill scan", "cutoff", s.cfg.CutoffTime().Format(time.RFC3339))

	channels, err := s.platform.GuildChannels(guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to list guild channels: %w", err)
	}

	total := 0
	for _, ch := range channels {
		if !s.eligible(ch) {
			continue
		}
		moved, err := s.scanChannel(ctx, ch)
		if err != nil {
			log.Error("Channel scan failed, moving on", "channel_id", ch.ID, "channel_name", ch.Name, "error", err)
			continue
		}
		if moved > 0 {
			// Zero-relocation rooms stay out of the report.
			log.Info("Channel backfilled", "channel_name", ch.Name, "relocated", moved)
		}
		total += moved
	}

	log.Info("Backfill scan complete", "relocated_total", total)
	return total, nil
}

// eligible reports whether a channel should be scanned: text channels that
// are neither destination rooms nor private rooms.
func (s *Scanner) eligible(ch *discordgo.Channel) bool {
	if ch.Type != discordgo.ChannelTypeGuildText {
		return false
	}
	if s.registry.IsDestination(ch.ID) {
		return false
	}
	if strings.Contains(strings.ToLower(ch.Name), strings.ToLower(s.marker)) {
		return false
	}
	return true
}

// scanChannel pages backward through one channel's history. The cursor is the
// oldest message ID fetched so far; the scan stops on an empty page, on the
// first message older than the cutoff, or on context cancellation.
func (s *Scanner) scanChannel(ctx context.Context, ch *discordgo.Channel) (int, error) {
	selfID := s.platform.Self().ID
	cutoff := s.cfg.CutoffTime()

	moved := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return moved, err
		}

		page, err := s.platform.Messages(ch.ID, s.cfg.PageSize, cursor)
		if err != nil {
			return moved, fmt.Errorf("failed to fetch history page: %w", err)
		}
		if len(page) == 0 {
			return moved, nil
		}

		for _, m := range page { // newest first within the page
			if m.Timestamp.Before(cutoff) {
				return moved, nil
			}
			if m.Author == nil || m.Author.ID == selfID {
				continue
			}
			// History fetched over REST carries no guild_id; only gateway
			// events do. Destination lookup needs it.
			m.GuildID = ch.GuildID
			if s.relocateOne(ctx, m) {
				moved++
			}
		}

		cursor = page[len(page)-1].ID

		// Fixed pause between pages to respect the platform's rate limits.
		select {
		case <-time.After(s.cfg.PageDelay):
		case <-ctx.Done():
			return moved, ctx.Err()
		}
	}
}

// relocateOne replays the live relocation path over one historical message,
// then deletes the original if at least one group was relocated. Repeated
// runs are idempotent modulo platform availability: a message deleted on the
// first run simply no longer appears in history.
func (s *Scanner) relocateOne(ctx context.Context, m *discordgo.Message) bool {
	groups := s.relocator.Relocate(ctx, m, m.Timestamp, true)
	if len(groups) == 0 {
		return false
	}
	if err := s.platform.DeleteMessage(m.ChannelID, m.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete backfilled original",
			"channel_id", m.ChannelID, "message_id", m.ID, "error", err)
	}
	return true
}
