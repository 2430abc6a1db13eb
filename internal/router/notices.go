package router

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/platform"
)

// Scheduler schedules a function to run once after a delay. Satisfied by the
// bot's gocron-backed scheduler.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Notifier posts short-lived notices that clean themselves up. Deletion is
// best effort: it is scheduled fire-and-forget and failures are ignored.
type Notifier struct {
	logger   *slog.Logger
	platform platform.Platform
	sched    Scheduler
}

// NewNotifier creates a Notifier.
func NewNotifier(logger *slog.Logger, p platform.Platform, sched Scheduler) *Notifier {
	return &Notifier{
		logger:   logger.With("component", "notifier"),
		platform: p,
		sched:    sched,
	}
}

// Flash posts content to a channel and schedules its deletion after ttl.
// A failed send is logged and dropped; a failed delete is silently ignored.
func (n *Notifier) Flash(channelID, content string, ttl time.Duration) {
	m, err := n.platform.SendMessage(channelID, &discordgo.MessageSend{Content: content})
	if err != nil {
		n.logger.Warn("Failed to post transient notice", "channel_id", channelID, "error", err)
		return
	}
	n.sched.After(ttl, func() {
		_ = n.platform.DeleteMessage(channelID, m.ID)
	})
}
