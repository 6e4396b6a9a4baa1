// Package clientdata persists prices fetched from external providers so the
// oracle can answer from cache and fall back to stale data when a provider fails.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PriceEntry is one cached price
type PriceEntry struct {
	Symbol    string
	Price     float64
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry has not expired at now
func (e *PriceEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Age returns how long ago the price was fetched
func (e *PriceEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Repository stores the current_prices table of client_data.db
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new price cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const upsertPrice = `
	INSERT INTO current_prices (symbol, price, fetched_at, expires_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(symbol) DO UPDATE SET
		price = excluded.price,
		fetched_at = excluded.fetched_at,
		expires_at = excluded.expires_at`

// Put caches price for symbol, fresh for ttl
func (r *Repository) Put(symbol string, price float64, ttl time.Duration) error {
	if price <= 0 {
		return fmt.Errorf("refusing to cache non-positive price %v for %s", price, symbol)
	}

	now := r.now()
	if _, err := r.db.Exec(upsertPrice, symbol, price, now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", symbol, err)
	}
	return nil
}

// PutMany caches a batch of prices in one transaction, skipping non-positive
// prices. Returns how many were stored.
func (r *Repository) PutMany(prices map[string]float64, ttl time.Duration) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(upsertPrice)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	stored := 0
	for symbol, price := range prices {
		if price <= 0 {
			continue
		}
		if _, err := stmt.Exec(symbol, price, now.Unix(), now.Add(ttl).Unix()); err != nil {
			return 0, fmt.Errorf("failed to cache price for %s: %w", symbol, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices: %w", err)
	}
	return stored, nil
}

// Lookup returns the cached entry for symbol whether fresh or not.
// Returns nil, nil when nothing is cached.
func (r *Repository) Lookup(symbol string) (*PriceEntry, error) {
	var (
		entry     = PriceEntry{Symbol: symbol}
		fetchedAt int64
		expiresAt int64
	)
	err := r.db.QueryRow(
		"SELECT price, fetched_at, expires_at FROM current_prices WHERE symbol = ?", symbol,
	).Scan(&entry.Price, &fetchedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached price for %s: %w", symbol, err)
	}

	entry.FetchedAt = time.Unix(fetchedAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)
	return &entry, nil
}

// Delete removes the entry for symbol
func (r *Repository) Delete(symbol string) error {
	if _, err := r.db.Exec("DELETE FROM current_prices WHERE symbol = ?", symbol); err != nil {
		return fmt.Errorf("failed to delete cached price for %s: %w", symbol, err)
	}
	return nil
}

// DeleteOlderThan removes prices fetched more than maxAge ago.
// Returns the number of rows deleted.
func (r *Repository) DeleteOlderThan(maxAge time.Duration) (int64, error) {
	cutoff := r.now().Add(-maxAge).Unix()

	result, err := r.db.Exec("DELETE FROM current_prices WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old prices: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Counts returns the number of cached prices and how many of them are fresh
func (r *Repository) Counts() (total, fresh int, err error) {
	err = r.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) FROM current_prices",
		r.now().Unix(),
	).Scan(&total, &fresh)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count cached prices: %w", err)
	}
	return total, fresh, nil
}
