package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

// User is a registered account holder
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Cash      float64   `json:"cash"`
	CreatedAt time.Time `json:"created_at"`
}

// HoldingRow is the persisted shape of a holding.
// PurchasePrice is the average cost per share.
type HoldingRow struct {
	UserID        string
	Ticker        string
	Quantity      float64
	PurchasePrice float64
}

// ToRow converts a holding into its persisted row
func (h *Holding) ToRow(userID string) HoldingRow {
	return HoldingRow{
		UserID:        userID,
		Ticker:        h.Ticker,
		Quantity:      h.Quantity,
		PurchasePrice: h.AverageCost(),
	}
}

// ToHolding rebuilds the holding; cost basis is purchase price times quantity.
// The last price is unknown until the next refresh.
func (r HoldingRow) ToHolding() *Holding {
	return &Holding{
		Ticker:    domain.NormalizeTicker(r.Ticker),
		Quantity:  r.Quantity,
		CostBasis: r.PurchasePrice * r.Quantity,
	}
}

// Repository handles user and holding persistence in portfolio.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, cash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Username, user.Cash, user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser returns a user by id
func (r *Repository) GetUser(ctx context.Context, userID string) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, cash, created_at FROM users WHERE id = ?", userID,
	).Scan(&user.ID, &user.Username, &user.Cash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

// ListUsers returns all users ordered by creation time
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, cash, created_at FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			user      User
			createdAt int64
		)
		if err := rows.Scan(&user.ID, &user.Username, &user.Cash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.CreatedAt = time.Unix(createdAt, 0).UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetHoldings returns the persisted holdings of a user, sorted by ticker
func (r *Repository) GetHoldings(ctx context.Context, userID string) ([]HoldingRow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id, ticker, quantity, purchase_price FROM holdings WHERE user_id = ? ORDER BY ticker",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for %s: %w", userID, err)
	}
	defer rows.Close()

	var result []HoldingRow
	for rows.Next() {
		var row HoldingRow
		if err := rows.Scan(&row.UserID, &row.Ticker, &row.Quantity, &row.PurchasePrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return result, nil
}

// ApplyTrade writes the cash balance and the holding row of a staged change
// in one transaction. It is used as the account commit hook.
func (r *Repository) ApplyTrade(ctx context.Context, change Change) error {
	trade := change.Trade

	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE users SET cash = ? WHERE id = ?", trade.CashAfter, trade.UserID)
		if err != nil {
			return fmt.Errorf("failed to update cash: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, trade.UserID)
		}

		if change.Holding == nil {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM holdings WHERE user_id = ? AND ticker = ?", trade.UserID, trade.Ticker,
			); err != nil {
				return fmt.Errorf("failed to delete holding %s: %w", trade.Ticker, err)
			}
			return nil
		}

		row := change.Holding.ToRow(trade.UserID)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO holdings (user_id, ticker, quantity, purchase_price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, ticker) DO UPDATE SET
				quantity = excluded.quantity,
				purchase_price = excluded.purchase_price`,
			row.UserID, row.Ticker, row.Quantity, row.PurchasePrice,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert holding %s: %w", row.Ticker, err)
		}

		r.log.Debug().
			Str("user_id", trade.UserID).
			Str("ticker", row.Ticker).
			Float64("quantity", row.Quantity).
			Msg("Holding persisted")
		return nil
	})
}
