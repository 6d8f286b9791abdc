package database

import (
	"database/sql"
	"fmt"
	"time"
)

// TTL registration mirrors a store-driven expiry index: each expiring table
// registers its timestamp column and expiry in ttl_meta, and a periodic sweep
// deletes rows older than the registered TTL.

const ttlMetaSchema = `
CREATE TABLE IF NOT EXISTS ttl_meta (
    collection  TEXT PRIMARY KEY,
    column_name TEXT NOT NULL,
    ttl_seconds INTEGER NOT NULL,
    updated_at  TEXT NOT NULL
)`

// EnsureTTL registers (or reconciles) the expiry configuration for a table.
//
// If a registration already exists with a different TTL or column, it is
// dropped and recreated with the new options in a single transaction. Any
// other storage error is returned to the caller and must be treated as fatal
// at startup.
func (db *DB) EnsureTTL(collection, column string, ttl time.Duration) error {
	if _, err := db.conn.Exec(ttlMetaSchema); err != nil {
		return fmt.Errorf("failed to create ttl_meta table: %w", err)
	}

	var existingColumn string
	var existingTTL int64
	err := db.conn.QueryRow(
		`SELECT column_name, ttl_seconds FROM ttl_meta WHERE collection = ?`, collection,
	).Scan(&existingColumn, &existingTTL)

	switch {
	case err == sql.ErrNoRows:
		_, err = db.conn.Exec(
			`INSERT INTO ttl_meta (collection, column_name, ttl_seconds, updated_at) VALUES (?, ?, ?, ?)`,
			collection, column, int64(ttl.Seconds()), time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to register TTL for %s: %w", collection, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("failed to read TTL registration for %s: %w", collection, err)
	}

	if existingColumn == column && existingTTL == int64(ttl.Seconds()) {
		return nil
	}

	// Options conflict: drop the old registration and recreate atomically.
	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ttl_meta WHERE collection = ?`, collection); err != nil {
			return fmt.Errorf("failed to drop conflicting TTL registration for %s: %w", collection, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO ttl_meta (collection, column_name, ttl_seconds, updated_at) VALUES (?, ?, ?, ?)`,
			collection, column, int64(ttl.Seconds()), time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to recreate TTL registration for %s: %w", collection, err)
		}
		return nil
	})
}

// SweepExpired deletes rows whose registered timestamp column is older than
// the registered TTL. Returns the number of rows removed.
func (db *DB) SweepExpired(collection string) (int64, error) {
	var column string
	var ttlSeconds int64
	err := db.conn.QueryRow(
		`SELECT column_name, ttl_seconds FROM ttl_meta WHERE collection = ?`, collection,
	).Scan(&column, &ttlSeconds)
	if err != nil {
		return 0, fmt.Errorf("no TTL registration for %s: %w", collection, err)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(ttlSeconds) * time.Second).Format(time.RFC3339)
	// Table and column names come from our own registration, not user input.
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, collection, column)
	res, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("TTL sweep failed for %s: %w", collection, err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}
