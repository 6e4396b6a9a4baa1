package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists snapshots in portfolio.db. Prices are stored as a
// msgpack-encoded map.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
		now: time.Now,
	}
}

// Save stores a snapshot. A snapshot that already exists for the same user
// and date is never overwritten: Save fails with ErrSnapshotExists.
func (r *Repository) Save(ctx context.Context, snap *Snapshot) error {
	blob, err := msgpack.Marshal(snap.Prices)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot prices: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (user_id, date, prices, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO NOTHING
	`, snap.UserID, snap.DateString(), blob, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s on %s: %w", snap.UserID, snap.DateString(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s on %s", domain.ErrSnapshotExists, snap.UserID, snap.DateString())
	}

	r.log.Debug().
		Str("user_id", snap.UserID).
		Str("date", snap.DateString()).
		Int("tickers", len(snap.Prices)).
		Msg("Snapshot saved")
	return nil
}

// Exists reports whether a snapshot is stored for userID on date
func (r *Repository) Exists(ctx context.Context, userID string, date time.Time) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM snapshots WHERE user_id = ? AND date = ?",
		userID, truncateToDate(date).Format(DateLayout),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return count > 0, nil
}

// Get returns the snapshot stored for userID on date
func (r *Repository) Get(ctx context.Context, userID string, date time.Time) (*Snapshot, error) {
	day := truncateToDate(date).Format(DateLayout)

	var blob []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT prices FROM snapshots WHERE user_id = ? AND date = ?", userID, day,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrSnapshotNotFound, userID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return decodeSnapshot(userID, day, blob)
}

// List returns all snapshots of userID, oldest first
func (r *Repository) List(ctx context.Context, userID string) ([]*Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT date, prices FROM snapshots WHERE user_id = ? ORDER BY date", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []*Snapshot{}
	for rows.Next() {
		var (
			day  string
			blob []byte
		)
		if err := rows.Scan(&day, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(userID, day, blob)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

func decodeSnapshot(userID, day string, blob []byte) (*Snapshot, error) {
	date, err := ParseDate(day)
	if err != nil {
		return nil, err
	}

	var prices map[string]float64
	if err := msgpack.Unmarshal(blob, &prices); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot prices for %s on %s: %w", userID, day, err)
	}
	return NewSnapshot(userID, date, prices), nil
}
