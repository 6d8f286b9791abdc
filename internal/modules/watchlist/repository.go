package watchlist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/database"
)

// archiveTTL is how long archived rows live before the sweep removes them.
const archiveTTL = 30 * 24 * time.Hour

// Repository persists watchlist items and the archive. Items are keyed
// (user_id, ticker); the enrichment fields live in one JSON column so the
// funnel can bulk-update them without schema churn.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a watchlist repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Init creates both tables and registers the archive TTL. A TTL mismatch is
// reconciled; any other registration error is fatal to startup.
func (r *Repository) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist_items (
			user_id      TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			is_favourite INTEGER NOT NULL DEFAULT 0,
			item         TEXT NOT NULL,
			PRIMARY KEY (user_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS archived_watchlist_items (
			user_id     TEXT NOT NULL,
			ticker      TEXT NOT NULL,
			item        TEXT NOT NULL,
			archived_at TEXT NOT NULL,
			PRIMARY KEY (user_id, ticker)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize watchlist schema: %w", err)
		}
	}

	if err := r.db.EnsureTTL("archived_watchlist_items", "archived_at", archiveTTL); err != nil {
		return fmt.Errorf("failed to register archive TTL: %w", err)
	}
	return nil
}

// Upsert inserts or replaces an item. Returns true when the item is new,
// which the handler maps to 201.
func (r *Repository) Upsert(item Item) (created bool, err error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("failed to encode watchlist item: %w", err)
	}

	var exists int
	err = r.db.QueryRow(
		`SELECT COUNT(*) FROM watchlist_items WHERE user_id = ? AND ticker = ?`,
		item.UserID, item.Ticker,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist item: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO watchlist_items (user_id, ticker, is_favourite, item)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, ticker) DO UPDATE SET
			is_favourite = excluded.is_favourite,
			item = excluded.item`,
		item.UserID, item.Ticker, boolToInt(item.IsFavourite), string(payload))
	if err != nil {
		return false, fmt.Errorf("failed to upsert watchlist item: %w", err)
	}
	return exists == 0, nil
}

// List returns a user's active items, excluding the given tickers.
func (r *Repository) List(userID string, exclude map[string]bool) ([]Item, error) {
	rows, err := r.db.Query(
		`SELECT item FROM watchlist_items WHERE user_id = ? ORDER BY ticker`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		var item Item
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			r.log.Warn().Err(err).Msg("Skipping corrupt watchlist row")
			continue
		}
		if exclude[item.Ticker] {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListAll returns every active item across users, for the refresh cycle.
func (r *Repository) ListAll() ([]Item, error) {
	rows, err := r.db.Query(`SELECT item FROM watchlist_items ORDER BY user_id, ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		var item Item
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			r.log.Warn().Err(err).Msg("Skipping corrupt watchlist row")
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// BulkUpdate rewrites the stored payload of every given active item in one
// transaction.
func (r *Repository) BulkUpdate(items []Item) error {
	if len(items) == 0 {
		return nil
	}

	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			UPDATE watchlist_items SET is_favourite = ?, item = ?
			WHERE user_id = ? AND ticker = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(boolToInt(item.IsFavourite), string(payload), item.UserID, item.Ticker); err != nil {
				return err
			}
		}
		return nil
	})
}

// Archive moves items out of the active list in one transaction, stamping
// archived_at.
func (r *Repository) Archive(items []Item, archivedAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	ts := archivedAt.UTC().Format(time.RFC3339)
	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		for _, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`
				INSERT INTO archived_watchlist_items (user_id, ticker, item, archived_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(user_id, ticker) DO UPDATE SET
					item = excluded.item, archived_at = excluded.archived_at`,
				item.UserID, item.Ticker, string(payload), ts)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`DELETE FROM watchlist_items WHERE user_id = ? AND ticker = ?`,
				item.UserID, item.Ticker); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteArchived removes a ticker from the archive for a user. Idempotent:
// deleting an absent row succeeds.
func (r *Repository) DeleteArchived(userID, ticker string) error {
	_, err := r.db.Exec(
		`DELETE FROM archived_watchlist_items WHERE user_id = ? AND ticker = ?`,
		userID, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete archived item: %w", err)
	}
	return nil
}

// ListArchived returns a user's archived items.
func (r *Repository) ListArchived(userID string) ([]ArchivedItem, error) {
	rows, err := r.db.Query(
		`SELECT item, archived_at FROM archived_watchlist_items WHERE user_id = ? ORDER BY ticker`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var items []ArchivedItem
	for rows.Next() {
		var payload, archivedAt string
		if err := rows.Scan(&payload, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		var item ArchivedItem
		if err := json.Unmarshal([]byte(payload), &item.Item); err != nil {
			r.log.Warn().Err(err).Msg("Skipping corrupt archive row")
			continue
		}
		item.ArchivedAt, _ = time.Parse(time.RFC3339, archivedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
