package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the audit-log operations. Methods accept context.Context for
// cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveRelocation inserts a new relocation audit row.
	SaveRelocation(ctx context.Context, rel *Relocation) error

	// CountRelocations returns the number of audit rows for a guild,
	// optionally restricted to backfilled ones.
	CountRelocations(ctx context.Context, guildID string, backfillOnly bool) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveRelocation(ctx context.Context, rel *Relocation) error {
	if rel == nil {
		return fmt.Errorf("cannot save nil relocation")
	}
	if rel.GuildID == "" || rel.DestChannelID == "" || rel.SummaryMessageID == "" {
		return fmt.Errorf("relocation must have guild, destination, and summary message IDs")
	}
	if rel.URLCount <= 0 {
		return fmt.Errorf("relocation must carry at least one URL")
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO relocations
			(guild_id, category, source_channel_id, dest_channel_id, summary_message_id, url_count, backfill, created_at)
		VALUES
			(:guild_id, :category, :source_channel_id, :dest_channel_id, :summary_message_id, :url_count, :backfill, :created_at)`

	res, err := s.db.NamedExecContext(ctx, query, rel)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert relocation",
			"guild_id", rel.GuildID, "category", rel.Category, "error", err)
		return fmt.Errorf("failed to insert relocation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rel.ID = id
	}
	return nil
}

func (s *sqlxStore) CountRelocations(ctx context.Context, guildID string, backfillOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM relocations WHERE guild_id = ?`
	args := []any{guildID}
	if backfillOnly {
		query += ` AND backfill = 1`
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count relocations: %w", err)
	}
	return count, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	return nil
}
