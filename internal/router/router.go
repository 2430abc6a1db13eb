// Package router implements the live message-routing engine: classifying
// links out of ordinary rooms into destination rooms, funneling destination
// room chatter into the single active discussion thread, and blocking links
// in private rooms.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/config"
	"linkherd/internal/links"
	"linkherd/internal/platform"
	"linkherd/internal/rooms"
)

// roomRole is the decision-table key evaluated once per message before any
// side effect.
type roomRole int

const (
	roleOrdinary roomRole = iota
	roleDestination
	rolePrivate
)

// Router processes live messages.
type Router struct {
	logger    *slog.Logger
	platform  platform.Platform
	registry  *rooms.Registry
	relocator *Relocator
	notifier  *Notifier
	cfg       config.RoutingConfig
}

// New creates a Router.
func New(logger *slog.Logger, p platform.Platform, registry *rooms.Registry, relocator *Relocator, notifier *Notifier, cfg config.RoutingConfig) *Router {
	return &Router{
		logger:    logger.With("component", "router"),
		platform:  p,
		registry:  registry,
		relocator: relocator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// HandleMessage routes one incoming message. Every failure inside is logged
// and contained: processing of subsequent messages is never put at risk.
func (r *Router) HandleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil {
		return
	}
	if msg.Author.ID == r.platform.Self().ID {
		return
	}
	if msg.GuildID == "" {
		// Direct message, nothing to route.
		return
	}

	ch, err := r.platform.Channel(msg.ChannelID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to resolve channel, skipping message",
			"channel_id", msg.ChannelID, "error", err)
		return
	}
	if ch.IsThread() {
		// Threads are the sanctioned discussion surface; pass through.
		return
	}

	switch r.roleOf(ch) {
	case roleDestination:
		r.intercept(ctx, msg)
	case rolePrivate:
		r.blockLinks(ctx, msg)
	default:
		r.route(ctx, msg)
	}
}

func (r *Router) roleOf(ch *discordgo.Channel) roomRole {
	if r.registry.IsDestination(ch.ID) {
		return roleDestination
	}
	if strings.Contains(strings.ToLower(ch.Name), strings.ToLower(r.cfg.PrivateMarker)) {
		return rolePrivate
	}
	return roleOrdinary
}

// intercept handles strict enforcement inside a destination room: the
// original message is removed and its content reposted inside the active
// discussion thread, attributed to the author.
func (r *Router) intercept(ctx context.Context, msg *discordgo.Message) {
	log := r.logger.With("channel_id", msg.ChannelID, "message_id", msg.ID)

	// Capture before deleting; the platform object is all we keep.
	content := msg.Content
	author := DisplayName(msg)
	var attachments []string
	for _, a := range msg.Attachments {
		attachments = append(attachments, a.URL)
	}

	if err := r.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		log.ErrorContext(ctx, "Failed to delete intercepted message", "error", err)
	}

	th, err := r.ActiveThread(ctx, msg.ChannelID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve active thread", "error", err)
		return
	}
	if th == nil {
		r.notifier.Flash(msg.ChannelID,
			fmt.Sprintf("<@%s> nothing has been shared here yet, so there is no discussion to join. Links posted anywhere on the server will show up here.", msg.Author.ID),
			r.cfg.EmptyNoticeTTL)
		return
	}

	repost := fmt.Sprintf("**%s**: %s", author, content)
	if len(attachments) > 0 {
		repost += "\n" + strings.Join(attachments, "\n")
	}
	if _, err := r.platform.SendMessage(th.ID, &discordgo.MessageSend{Content: repost}); err != nil {
		log.ErrorContext(ctx, "Failed to repost intercepted message into thread",
			"thread_id", th.ID, "error", err)
		return
	}

	r.notifier.Flash(msg.ChannelID,
		fmt.Sprintf("<@%s> discussion lives in the thread — your message was moved to <#%s>.", msg.Author.ID, th.ID),
		r.cfg.RedirectNoticeTTL)
}

// blockLinks enforces the no-links policy of private rooms.
func (r *Router) blockLinks(ctx context.Context, msg *discordgo.Message) {
	if len(links.Extract(msg.Content)) == 0 {
		return
	}
	if err := r.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete link message in private room",
			"channel_id", msg.ChannelID, "message_id", msg.ID, "error", err)
		return
	}
	r.notifier.Flash(msg.ChannelID,
		fmt.Sprintf("<@%s> links are not allowed in this channel.", msg.Author.ID),
		r.cfg.RedirectNoticeTTL)
}

// route relocates link groups out of an ordinary room. Sends happen before
// the delete, so content is never lost between the two; a message whose links
// all already belong here is left untouched.
func (r *Router) route(ctx context.Context, msg *discordgo.Message) {
	moved := r.relocator.Relocate(ctx, msg, time.Time{}, false)
	if len(moved) == 0 {
		return
	}

	if err := r.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete relocated original",
			"channel_id", msg.ChannelID, "message_id", msg.ID, "error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<@%s> your links were moved:", msg.Author.ID)
	for _, m := range moved {
		def := m.Category.Def()
		fmt.Fprintf(&b, "\n%s %s → <#%s>", def.Icon, def.Title, m.Channel.ID)
	}
	b.WriteString("\nJoin the thread there to keep talking.")
	r.notifier.Flash(msg.ChannelID, b.String(), r.cfg.RedirectNoticeTTL)
}
