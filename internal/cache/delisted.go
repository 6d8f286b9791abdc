package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DelistedRegistry is the deny-list of tickers whose outbound fetches are
// short-circuited. Reads soft-fail: a storage error is logged and reported
// as "not delisted" so a degraded registry never blocks a request.
type DelistedRegistry struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDelistedRegistry creates a registry over the given database.
func NewDelistedRegistry(db *sql.DB, log zerolog.Logger) *DelistedRegistry {
	return &DelistedRegistry{
		db:  db,
		log: log.With().Str("repo", "ticker_status").Logger(),
	}
}

// Init creates the ticker_status table.
func (r *DelistedRegistry) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS ticker_status (
			ticker       TEXT PRIMARY KEY,
			status       TEXT NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			last_updated TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create ticker_status table: %w", err)
	}
	return nil
}

// IsDelisted reports whether the ticker carries a delisted record.
func (r *DelistedRegistry) IsDelisted(ticker string) bool {
	var status string
	err := r.db.QueryRow(
		`SELECT status FROM ticker_status WHERE ticker = ?`, ticker,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("Delisted lookup failed, assuming listed")
		return false
	}
	return status == "delisted"
}

// MarkDelisted upserts the delisted record for a ticker.
func (r *DelistedRegistry) MarkDelisted(ticker, reason string) error {
	_, err := r.db.Exec(`
		INSERT INTO ticker_status (ticker, status, reason, last_updated)
		VALUES (?, 'delisted', ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			status = 'delisted',
			reason = excluded.reason,
			last_updated = excluded.last_updated`,
		ticker, reason, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to mark %s delisted: %w", ticker, err)
	}
	return nil
}
