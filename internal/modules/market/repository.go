package market

import (
	"database/sql"
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

// TrendRepository persists the per-day market trend labels, unique by date.
type TrendRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTrendRepository creates a new market-trend repository.
func NewTrendRepository(db *sql.DB, log zerolog.Logger) *TrendRepository {
	return &TrendRepository{
		db:  db,
		log: log.With().Str("repo", "market_trends").Logger(),
	}
}

// Init creates the market_trends table.
func (r *TrendRepository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS market_trends (
			date  TEXT PRIMARY KEY,
			trend TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create market_trends table: %w", err)
	}
	return nil
}

// Upsert writes the trend label for a date (last writer wins).
func (r *TrendRepository) Upsert(day domain.MarketTrendDay) error {
	_, err := r.db.Exec(`
		INSERT INTO market_trends (date, trend) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET trend = excluded.trend`,
		day.Date, day.Trend)
	if err != nil {
		return fmt.Errorf("failed to upsert market trend for %s: %w", day.Date, err)
	}
	return nil
}

// Recent returns up to limit trend days, oldest first.
func (r *TrendRepository) Recent(limit int) ([]domain.MarketTrendDay, error) {
	rows, err := r.db.Query(`
		SELECT date, trend FROM (
			SELECT date, trend FROM market_trends ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query market trends: %w", err)
	}
	defer rows.Close()

	var days []domain.MarketTrendDay
	for rows.Next() {
		var day domain.MarketTrendDay
		if err := rows.Scan(&day.Date, &day.Trend); err != nil {
			return nil, fmt.Errorf("failed to scan market trend row: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}
