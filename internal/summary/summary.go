// Package summary composes the attributed embed that replaces a relocated
// link batch, and recognizes such embeds when scanning destination rooms.
package summary

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/links"
)

// Footer is the fixed call-to-action inviting readers into the discussion
// thread.
const Footer = "Join the thread below to discuss"

// threadNameLimit is the platform's maximum thread name length.
const threadNameLimit = 100

// Record describes one relocation event before it is rendered into an embed.
type Record struct {
	Category     links.Category
	URLs         []string
	AuthorName   string
	AuthorAvatar string

	// OriginChannelID references the room the links were posted in.
	// Optional.
	OriginChannelID string

	// OriginalTime is the creation time of the original message. Set only
	// when replaying backfilled history so readers see the true historical
	// time; zero means the relocation is live.
	OriginalTime time.Time
}

// Compose renders a Record into a message embed. Deterministic given its
// inputs: the display timestamp is OriginalTime when set, otherwise now.
func Compose(rec Record) *discordgo.MessageEmbed {
	def := rec.Category.Def()

	var desc strings.Builder
	for _, u := range rec.URLs {
		desc.WriteString(u)
		desc.WriteString("\n")
	}
	fmt.Fprintf(&desc, "\nShared by **%s**", rec.AuthorName)

	embed := &discordgo.MessageEmbed{
		Title:       def.Icon + " " + def.Title,
		Color:       def.Color,
		Description: desc.String(),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    rec.AuthorName,
			IconURL: rec.AuthorAvatar,
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: Footer,
		},
	}

	if rec.OriginChannelID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "From",
			Value:  fmt.Sprintf("<#%s>", rec.OriginChannelID),
			Inline: true,
		})
	}

	ts := rec.OriginalTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Originally posted",
			Value:  fmt.Sprintf("<t:%d:f>", rec.OriginalTime.Unix()),
			Inline: true,
		})
	}
	embed.Timestamp = ts.Format(time.RFC3339)

	return embed
}

// IsSummary reports whether m is a summary record authored by the engine
// itself.
func IsSummary(m *discordgo.Message, selfID string) bool {
	return m != nil && m.Author != nil && m.Author.ID == selfID && len(m.Embeds) > 0
}

// ThreadNameFromEmbed derives the discussion-thread name for a summary embed:
// the embed title plus the first URL's host and path, truncated to the
// platform limit.
func ThreadNameFromEmbed(e *discordgo.MessageEmbed) string {
	return threadName(e.Title, FirstURL(e))
}

// FirstURL returns the first URL in a summary embed's description, or "".
func FirstURL(e *discordgo.MessageEmbed) string {
	if e == nil {
		return ""
	}
	for _, line := range strings.Split(e.Description, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line
		}
	}
	return ""
}

func threadName(title, firstURL string) string {
	name := title
	if u, err := url.Parse(firstURL); err == nil && u.Host != "" {
		name = fmt.Sprintf("%s: %s%s", name, u.Host, u.Path)
	}
	// The platform limit is in characters; cutting bytes could split a rune
	// (titles start with an emoji).
	if runes := []rune(name); len(runes) > threadNameLimit {
		name = string(runes[:threadNameLimit])
	}
	return name
}
