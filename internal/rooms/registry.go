// Package rooms resolves and caches the destination room of each link
// category, one per guild, and enforces the access policy that keeps
// top-level posting in those rooms to the engine itself.
package rooms

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/links"
	"linkherd/internal/platform"
)

// Permission masks for the strict access policy on destination rooms. The
// default role may look, react, and talk in threads, but top-level messages
// stay with the engine.
const (
	everyoneAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAddReactions |
		discordgo.PermissionCreatePublicThreads |
		discordgo.PermissionSendMessagesInThreads

	everyoneDeny = discordgo.PermissionSendMessages

	selfAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionManageMessages |
		discordgo.PermissionManageThreads |
		discordgo.PermissionSendMessagesInThreads |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionEmbedLinks |
		discordgo.PermissionAttachFiles
)

type bindingKey struct {
	guildID  string
	category links.Category
}

// Registry resolves one destination room per (guild, category) and caches the
// binding for the process lifetime. Bindings are rebuilt from live platform
// data on every startup; resolved IDs are echoed to the log so an operator
// can pin them in configuration.
type Registry struct {
	logger   *slog.Logger
	platform platform.Platform

	// configured carries operator-pinned channel IDs per category.
	configured map[links.Category]string

	mu           sync.Mutex
	bindings     map[bindingKey]*discordgo.Channel
	destinations map[string]struct{}
}

// New creates a Registry. channels maps category keys to pinned channel IDs
// and may be nil; unknown keys were already rejected by config validation.
func New(logger *slog.Logger, p platform.Platform, channels map[string]string) *Registry {
	configured := make(map[links.Category]string, len(channels))
	for key, id := range channels {
		if cat, ok := links.ByKey(key); ok {
			configured[cat] = id
		}
	}
	return &Registry{
		logger:       logger.With("component", "rooms"),
		platform:     p,
		configured:   configured,
		bindings:     make(map[bindingKey]*discordgo.Channel),
		destinations: make(map[string]struct{}),
	}
}

// Ensure resolves the destination room for a category in a guild, creating it
// if necessary. Idempotent per (guild, category): after the first successful
// call the cached handle is returned.
func (r *Registry) Ensure(guildID string, cat links.Category) (*discordgo.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := bindingKey{guildID: guildID, category: cat}
	if ch, ok := r.bindings[key]; ok {
		return ch, nil
	}

	ch, err := r.resolve(guildID, cat)
	if err != nil {
		return nil, err
	}

	r.applyAccessPolicy(ch)

	r.bindings[key] = ch
	r.destinations[ch.ID] = struct{}{}
	r.logger.Info("Destination room resolved",
		"guild_id", guildID,
		"category", cat.String(),
		"channel_id", ch.ID,
		"channel_name", ch.Name,
		"config_hint", fmt.Sprintf("routing.channels.%s: %q", cat.Def().Key, ch.ID))
	return ch, nil
}

// EnsureAll resolves every category's destination room for a guild. Failures
// are joined and returned, but each category is attempted.
func (r *Registry) EnsureAll(guildID string) error {
	var errs []error
	for _, cat := range links.Categories() {
		if _, err := r.Ensure(guildID, cat); err != nil {
			r.logger.Error("Failed to resolve destination room",
				"guild_id", guildID, "category", cat.String(), "error", err)
			errs = append(errs, fmt.Errorf("category %s: %w", cat, err))
		}
	}
	return errors.Join(errs...)
}

// IsDestination reports whether channelID is a resolved destination room.
func (r *Registry) IsDestination(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.destinations[channelID]
	return ok
}

// resolve applies the resolution order: a configured live channel wins, then
// an existing channel with the category's preferred name, then a fresh one.
func (r *Registry) resolve(guildID string, cat links.Category) (*discordgo.Channel, error) {
	def := cat.Def()

	if id, ok := r.configured[cat]; ok && id != "" {
		ch, err := r.platform.Channel(id)
		if err == nil && ch.GuildID == guildID && ch.Type == discordgo.ChannelTypeGuildText {
			return ch, nil
		}
		r.logger.Warn("Configured destination channel is stale, re-resolving",
			"guild_id", guildID, "category", cat.String(), "channel_id", id, "error", err)
	}

	channels, err := r.platform.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == def.RoomName {
			return ch, nil
		}
	}

	ch, err := r.platform.CreateChannel(guildID, def.RoomName, def.Topic)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination channel %q: %w", def.RoomName, err)
	}
	r.logger.Info("Created destination room",
		"guild_id", guildID, "category", cat.String(), "channel_id", ch.ID)
	return ch, nil
}

// applyAccessPolicy locks a destination room down: the default role keeps
// read/react/thread rights but loses top-level posting; the engine keeps
// full rights. Failures leave the room usable without the guardrail, so they
// are logged and swallowed.
func (r *Registry) applyAccessPolicy(ch *discordgo.Channel) {
	// The guild's default role shares the guild ID.
	err := r.platform.SetChannelPermissions(ch.ID, ch.GuildID, discordgo.PermissionOverwriteTypeRole, everyoneAllow, everyoneDeny)
	if err != nil {
		r.logger.Warn("Failed to apply access policy for default role",
			"channel_id", ch.ID, "error", err)
		return
	}

	self := r.platform.Self()
	if err := r.platform.SetChannelPermissions(ch.ID, self.ID, discordgo.PermissionOverwriteTypeMember, selfAllow, 0); err != nil {
		r.logger.Warn("Failed to apply access policy for self",
			"channel_id", ch.ID, "error", err)
	}
}
