// Package platformtest provides an in-memory Platform implementation for
// exercising routing logic in tests without a gateway connection.
package platformtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// SentMessage records one SendMessage call.
type SentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
	Message   *discordgo.Message
}

// DeletedMessage records one DeleteMessage call.
type DeletedMessage struct {
	ChannelID string
	MessageID string
}

// PermissionCall records one SetChannelPermissions call.
type PermissionCall struct {
	ChannelID  string
	TargetID   string
	TargetType discordgo.PermissionOverwriteType
	Allow      int64
	Deny       int64
}

// Fake is an in-memory Platform. Channels and messages are seeded through
// AddChannel and SeedMessage; every mutating call is recorded for assertions.
// Message lists are kept newest first, matching the platform's fetch order.
type Fake struct {
	mu sync.Mutex

	User     *discordgo.User
	channels map[string]*discordgo.Channel
	messages map[string][]*discordgo.Message
	deleted  map[string]struct{}

	Sent        []SentMessage
	Deleted     []DeletedMessage
	Created     []*discordgo.Channel
	Permissions []PermissionCall
	Unarchived  []string

	// Error hooks. When set and returning non-nil, the corresponding call
	// fails without side effects.
	SendErr        func(channelID string) error
	PermissionErr  error
	StartThreadErr error

	nextID int
}

// New creates a Fake with the given self identity.
func New(selfID string) *Fake {
	return &Fake{
		User:     &discordgo.User{ID: selfID, Username: "linkherd"},
		channels: make(map[string]*discordgo.Channel),
		messages: make(map[string][]*discordgo.Message),
		deleted:  make(map[string]struct{}),
		nextID:   1000,
	}
}

// AddChannel registers a channel. Returns it for convenience.
func (f *Fake) AddChannel(ch *discordgo.Channel) *discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[ch.ID] = ch
	return ch
}

// AddTextChannel registers a plain guild text channel.
func (f *Fake) AddTextChannel(id, guildID, name string) *discordgo.Channel {
	return f.AddChannel(&discordgo.Channel{
		ID:      id,
		GuildID: guildID,
		Name:    name,
		Type:    discordgo.ChannelTypeGuildText,
	})
}

// SeedMessage inserts a message as the newest entry of its channel.
func (f *Fake) SeedMessage(m *discordgo.Message) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ChannelID] = append([]*discordgo.Message{m}, f.messages[m.ChannelID]...)
	return m
}

// ChannelMessages returns the live (newest first) message list of a channel.
func (f *Fake) ChannelMessages(channelID string) []*discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*discordgo.Message
	for _, m := range f.messages[channelID] {
		if _, gone := f.deleted[m.ID]; !gone {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fake) genID() string {
	f.nextID++
	return fmt.Sprintf("%d", f.nextID)
}

func (f *Fake) Self() *discordgo.User {
	return f.User
}

func (f *Fake) Channel(channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return ch, nil
}

func (f *Fake) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var chs []*discordgo.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID && !ch.IsThread() {
			chs = append(chs, ch)
		}
	}
	return chs, nil
}

func (f *Fake) CreateChannel(guildID, name, topic string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &discordgo.Channel{
		ID:      f.genID(),
		GuildID: guildID,
		Name:    name,
		Topic:   topic,
		Type:    discordgo.ChannelTypeGuildText,
	}
	f.channels[ch.ID] = ch
	f.Created = append(f.Created, ch)
	return ch, nil
}

func (f *Fake) SetChannelPermissions(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PermissionErr != nil {
		return f.PermissionErr
	}
	f.Permissions = append(f.Permissions, PermissionCall{
		ChannelID:  channelID,
		TargetID:   targetID,
		TargetType: targetType,
		Allow:      allow,
		Deny:       deny,
	})
	return nil
}

func (f *Fake) SendMessage(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		if err := f.SendErr(channelID); err != nil {
			return nil, err
		}
	}
	m := &discordgo.Message{
		ID:        f.genID(),
		ChannelID: channelID,
		Author:    f.User,
		Content:   data.Content,
		Embeds:    data.Embeds,
		Timestamp: time.Now().UTC(),
	}
	f.messages[channelID] = append([]*discordgo.Message{m}, f.messages[channelID]...)
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Data: data, Message: m})
	return m, nil
}

func (f *Fake) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[messageID] = struct{}{}
	f.Deleted = append(f.Deleted, DeletedMessage{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *Fake) Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[channelID]
	if beforeID != "" {
		// The cursor position stays valid even after its message is
		// deleted, as on the real platform.
		for i, m := range msgs {
			if m.ID == beforeID {
				msgs = msgs[i+1:]
				break
			}
		}
	}
	var out []*discordgo.Message
	for _, m := range msgs {
		if _, gone := f.deleted[m.ID]; gone {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) StartThread(channelID, messageID, name string, autoArchiveMinutes int) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartThreadErr != nil {
		return nil, f.StartThreadErr
	}
	parent, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	// As on the real platform, a message thread shares the anchor message ID.
	th := &discordgo.Channel{
		ID:             messageID,
		GuildID:        parent.GuildID,
		ParentID:       channelID,
		Name:           name,
		Type:           discordgo.ChannelTypeGuildPublicThread,
		ThreadMetadata: &discordgo.ThreadMetadata{AutoArchiveDuration: autoArchiveMinutes},
	}
	f.channels[th.ID] = th
	for _, m := range f.messages[channelID] {
		if m.ID == messageID {
			m.Thread = th
			break
		}
	}
	return th, nil
}

func (f *Fake) UnarchiveThread(threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	th, ok := f.channels[threadID]
	if !ok {
		return fmt.Errorf("unknown thread %s", threadID)
	}
	if th.ThreadMetadata != nil {
		th.ThreadMetadata.Archived = false
	}
	f.Unarchived = append(f.Unarchived, threadID)
	return nil
}
