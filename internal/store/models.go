package store

import "time"

// Relocation is one audit row: a single summary record sent to a destination
// room on behalf of an author.
type Relocation struct {
	ID               int64     `db:"id"`
	GuildID          string    `db:"guild_id"`
	Category         string    `db:"category"`
	SourceChannelID  string    `db:"source_channel_id"`
	DestChannelID    string    `db:"dest_channel_id"`
	SummaryMessageID string    `db:"summary_message_id"`
	URLCount         int       `db:"url_count"`
	Backfill         bool      `db:"backfill"`
	CreatedAt        time.Time `db:"created_at"`
}
