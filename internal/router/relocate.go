package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/links"
	"linkherd/internal/platform"
	"linkherd/internal/rooms"
	"linkherd/internal/store"
	"linkherd/internal/summary"
)

// Moved records one successful relocation of a category group.
type Moved struct {
	Category links.Category
	Channel  *discordgo.Channel
	URLCount int
}

// Relocator sends summary records for the link groups of a message. It is
// shared between the live router and the backfill scanner so both replay the
// exact same relocation logic.
type Relocator struct {
	logger   *slog.Logger
	platform platform.Platform
	registry *rooms.Registry
	audit    store.Store
}

// NewRelocator creates a Relocator. audit may be nil to disable the audit log.
func NewRelocator(logger *slog.Logger, p platform.Platform, registry *rooms.Registry, audit store.Store) *Relocator {
	return &Relocator{
		logger:   logger.With("component", "relocator"),
		platform: p,
		registry: registry,
		audit:    audit,
	}
}

// Relocate classifies the links in msg and sends one summary record per
// category group whose destination differs from the message's own channel.
// originalTime marks backfilled history and is zero for live traffic.
//
// Failures are logged per group and skipped; the groups actually moved are
// returned. The original message is never touched here: deletion stays with
// the caller so sends always precede the delete.
func (rl *Relocator) Relocate(ctx context.Context, msg *discordgo.Message, originalTime time.Time, backfill bool) []Moved {
	groups := links.GroupText(msg.Content)
	if len(groups) == 0 {
		return nil
	}

	var moved []Moved
	for _, g := range groups {
		dest, err := rl.registry.Ensure(msg.GuildID, g.Category)
		if err != nil {
			rl.logger.ErrorContext(ctx, "Failed to resolve destination, skipping group",
				"guild_id", msg.GuildID, "category", g.Category.String(), "error", err)
			continue
		}
		if dest.ID == msg.ChannelID {
			// Links already live where they belong.
			continue
		}

		embed := summary.Compose(summary.Record{
			Category:        g.Category,
			URLs:            g.URLs,
			AuthorName:      DisplayName(msg),
			AuthorAvatar:    avatarURL(msg),
			OriginChannelID: msg.ChannelID,
			OriginalTime:    originalTime,
		})

		sent, err := rl.platform.SendMessage(dest.ID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
		if err != nil {
			rl.logger.ErrorContext(ctx, "Failed to send summary record, skipping group",
				"dest_channel_id", dest.ID, "category", g.Category.String(), "error", err)
			continue
		}

		moved = append(moved, Moved{Category: g.Category, Channel: dest, URLCount: len(g.URLs)})
		rl.recordAudit(ctx, msg, sent, dest, g, backfill)
	}
	return moved
}

func (rl *Relocator) recordAudit(ctx context.Context, msg, sent *discordgo.Message, dest *discordgo.Channel, g links.Group, backfill bool) {
	if rl.audit == nil {
		return
	}
	rel := &store.Relocation{
		GuildID:          msg.GuildID,
		Category:         g.Category.String(),
		SourceChannelID:  msg.ChannelID,
		DestChannelID:    dest.ID,
		SummaryMessageID: sent.ID,
		URLCount:         len(g.URLs),
		Backfill:         backfill,
	}
	if err := rl.audit.SaveRelocation(ctx, rel); err != nil {
		rl.logger.WarnContext(ctx, "Failed to record relocation in audit log", "error", err)
	}
}

// DisplayName returns the author identity to attribute relocated content to:
// the guild nickname when set, then the global display name, then the
// username.
func DisplayName(msg *discordgo.Message) string {
	if msg.Member != nil && msg.Member.Nick != "" {
		return msg.Member.Nick
	}
	if msg.Author == nil {
		return "unknown"
	}
	if msg.Author.GlobalName != "" {
		return msg.Author.GlobalName
	}
	return msg.Author.Username
}

func avatarURL(msg *discordgo.Message) string {
	if msg.Author == nil {
		return ""
	}
	return msg.Author.AvatarURL("")
}
