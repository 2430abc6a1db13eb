// Package platform defines the narrow slice of the chat platform that the
// routing engine consumes, and its Discord implementation. The engine never
// talks to the gateway directly: everything goes through the Platform
// interface so routing logic stays testable against an in-memory fake.
package platform

import (
	"github.com/bwmarrin/discordgo"
)

// Platform is the chat-platform capability consumed by the routing engine:
// room lookup and creation, message send/delete/paginated fetch, thread
// creation and archival, permission overwrites, and self identity.
type Platform interface {
	// Self returns the bot's own user identity.
	Self() *discordgo.User

	// Channel resolves a channel (or thread) by ID.
	Channel(channelID string) (*discordgo.Channel, error)

	// GuildChannels lists all channels of a guild.
	GuildChannels(guildID string) ([]*discordgo.Channel, error)

	// CreateChannel creates a text channel with the given name and topic.
	CreateChannel(guildID, name, topic string) (*discordgo.Channel, error)

	// SetChannelPermissions applies a permission overwrite on a channel for
	// a role or member target.
	SetChannelPermissions(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error

	// SendMessage sends a message (content, embeds, files) to a channel or
	// thread.
	SendMessage(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)

	// DeleteMessage deletes a single message.
	DeleteMessage(channelID, messageID string) error

	// Messages fetches up to limit messages of a channel, newest first,
	// strictly older than beforeID when beforeID is non-empty.
	Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error)

	// StartThread creates a thread anchored to an existing message.
	StartThread(channelID, messageID, name string, autoArchiveMinutes int) (*discordgo.Channel, error)

	// UnarchiveThread clears the archived flag of a thread.
	UnarchiveThread(threadID string) error
}
