package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"forwarder/internal/models"
	"forwarder/internal/providers"
)

// SQLiteGateway keeps fingerprints as ordered rows and the relay map as one
// row per copy. Each save replaces a table inside a single transaction.
type SQLiteGateway struct {
	db     *sql.DB
	logger providers.Logger
}

func NewSQLiteGateway(dbPath string, logger providers.Logger) (*SQLiteGateway, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; modernc serializes anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fingerprints (
			seq INTEGER PRIMARY KEY,
			fp  TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create fingerprints table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS relay_copies (
			source_feed INTEGER NOT NULL,
			source_msg  INTEGER NOT NULL,
			position    INTEGER NOT NULL,
			dest_feed   INTEGER NOT NULL,
			dest_msg    INTEGER NOT NULL,
			PRIMARY KEY (source_feed, source_msg, position)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create relay_copies table: %w", err)
	}

	return &SQLiteGateway{db: db, logger: logger}, nil
}

func (s *SQLiteGateway) LoadFingerprints(ctx context.Context) ([]models.Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fp FROM fingerprints ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var out []models.Fingerprint
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		out = append(out, models.Fingerprint(fp))
	}
	return out, rows.Err()
}

func (s *SQLiteGateway) SaveFingerprints(ctx context.Context, fps []models.Fingerprint) error {
	return s.replace(ctx, "fingerprints", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO fingerprints (seq, fp) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, fp := range fps {
			if _, err := stmt.ExecContext(ctx, i, string(fp)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteGateway) LoadRelayMap(ctx context.Context) (map[models.RelayKey][]models.Copy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_feed, source_msg, dest_feed, dest_msg
		FROM relay_copies
		ORDER BY source_feed, source_msg, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query relay map: %w", err)
	}
	defer rows.Close()

	out := make(map[models.RelayKey][]models.Copy)
	for rows.Next() {
		var key models.RelayKey
		var c models.Copy
		if err := rows.Scan(&key.Feed, &key.Message, &c.Feed, &c.Message); err != nil {
			return nil, fmt.Errorf("failed to scan relay copy: %w", err)
		}
		out[key] = append(out[key], c)
	}
	return out, rows.Err()
}

func (s *SQLiteGateway) SaveRelayMap(ctx context.Context, entries map[models.RelayKey][]models.Copy) error {
	return s.replace(ctx, "relay_copies", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO relay_copies (source_feed, source_msg, position, dest_feed, dest_msg)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for key, copies := range entries {
			for i, c := range copies {
				if _, err := stmt.ExecContext(ctx, key.Feed, key.Message, i, c.Feed, c.Message); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// replace clears table and refills it through fill in one transaction.
func (s *SQLiteGateway) replace(ctx context.Context, table string, fill func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteGateway) Close() error {
	return s.db.Close()
}
