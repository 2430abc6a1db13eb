package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

const readyTimeout = 30 * time.Second

// Discord implements Platform on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
	logger  *slog.Logger
	ready   chan struct{}
}

// NewDiscord creates a Discord platform from a bot token. The gateway
// connection is not opened until Open is called.
func NewDiscord(token string, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	d := &Discord{
		session: session,
		logger:  logger.With("component", "discord"),
		ready:   make(chan struct{}),
	}
	session.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info("Gateway ready", "username", r.User.Username, "guilds", len(r.Guilds))
		close(d.ready)
	})
	return d, nil
}

// OnMessageCreate registers a handler for new messages. Must be called before
// Open so no delivery is missed.
func (d *Discord) OnMessageCreate(fn func(*discordgo.MessageCreate)) {
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		fn(m)
	})
}

// Open connects to the gateway and blocks until the session is ready or the
// context is done.
func (d *Discord) Open(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	select {
	case <-d.ready:
		return nil
	case <-time.After(readyTimeout):
		return fmt.Errorf("timed out waiting for gateway ready")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the gateway connection.
func (d *Discord) Close() error {
	return d.session.Close()
}

// GuildIDs returns the IDs of all guilds the bot is a member of. Valid after
// Open has returned.
func (d *Discord) GuildIDs() []string {
	guilds := d.session.State.Guilds
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (d *Discord) Self() *discordgo.User {
	return d.session.State.User
}

func (d *Discord) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return d.session.Channel(channelID)
}

func (d *Discord) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	return d.session.GuildChannels(guildID)
}

func (d *Discord) CreateChannel(guildID, name, topic string) (*discordgo.Channel, error) {
	return d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: topic,
	})
}

func (d *Discord) SetChannelPermissions(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	return d.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny)
}

func (d *Discord) SendMessage(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, data)
}

func (d *Discord) DeleteMessage(channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID)
}

func (d *Discord) Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(channelID, limit, beforeID, "", "")
}

func (d *Discord) StartThread(channelID, messageID, name string, autoArchiveMinutes int) (*discordgo.Channel, error) {
	return d.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: autoArchiveMinutes,
	})
}

func (d *Discord) UnarchiveThread(threadID string) error {
	archived := false
	_, err := d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
	})
	return err
}
