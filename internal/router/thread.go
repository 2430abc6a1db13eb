package router

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/summary"
)

const (
	// threadWindow bounds how far back a destination room is scanned for
	// its newest summary record.
	threadWindow = 50

	// autoArchiveMinutes is the thread inactivity window (24h).
	autoArchiveMinutes = 1440
)

// ActiveThread finds or creates the single active discussion thread of a
// destination room: the thread anchored to the newest engine-authored summary
// record. An archived thread is un-archived transparently. Returns nil with
// no error when the room holds no summary record yet. Older records' threads
// are never reopened.
func (r *Router) ActiveThread(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	msgs, err := r.platform.Messages(channelID, threadWindow, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}

	selfID := r.platform.Self().ID
	for _, m := range msgs { // newest first
		if !summary.IsSummary(m, selfID) {
			continue
		}

		if th := r.existingThread(m); th != nil {
			if th.ThreadMetadata != nil && th.ThreadMetadata.Archived {
				if err := r.platform.UnarchiveThread(th.ID); err != nil {
					return nil, fmt.Errorf("failed to unarchive thread %s: %w", th.ID, err)
				}
				r.logger.InfoContext(ctx, "Un-archived discussion thread", "thread_id", th.ID)
			}
			return th, nil
		}

		name := summary.ThreadNameFromEmbed(m.Embeds[0])
		th, err := r.platform.StartThread(channelID, m.ID, name, autoArchiveMinutes)
		if err != nil {
			return nil, fmt.Errorf("failed to start thread on message %s: %w", m.ID, err)
		}
		r.logger.InfoContext(ctx, "Created discussion thread",
			"channel_id", channelID, "thread_id", th.ID, "name", name)
		return th, nil
	}

	return nil, nil
}

// existingThread returns the thread already anchored to m, if any. The fetch
// does not always populate the Thread field, so a thread sharing the message
// ID is looked up as well.
func (r *Router) existingThread(m *discordgo.Message) *discordgo.Channel {
	if m.Thread != nil {
		return m.Thread
	}
	if th, err := r.platform.Channel(m.ID); err == nil && th.IsThread() {
		return th
	}
	return nil
}
