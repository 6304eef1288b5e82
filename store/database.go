// Package store persists the last known announcement list, display
// settings, and screen schedule so the display survives gateway
// outages and restarts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tranvh2/marquee/rotation"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create tables if they don't exist
	if err := database.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return database, nil
}

func (d *Database) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS announcements (
		id               TEXT NOT NULL,
		media_url        TEXT NOT NULL,
		display_duration INTEGER NOT NULL,
		transition_type  TEXT NOT NULL,
		order_index      INTEGER,
		created_at       TEXT NOT NULL,
		position         INTEGER NOT NULL,
		PRIMARY KEY (id)
	);
	CREATE INDEX IF NOT EXISTS idx_announcements_position ON announcements(position);
	CREATE TABLE IF NOT EXISTS display_settings (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		refresh_interval_minutes INTEGER NOT NULL,
		PRIMARY KEY (singleton)
	);
	CREATE TABLE IF NOT EXISTS screen_schedule (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		enabled INTEGER NOT NULL,
		start   TEXT NOT NULL,
		end     TEXT NOT NULL,
		PRIMARY KEY (singleton)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

// ReplaceAnnouncements swaps the stored snapshot wholesale for the
// given list. position preserves the rotation order.
func (d *Database) ReplaceAnnouncements(items []rotation.Announcement) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM announcements`); err != nil {
		return fmt.Errorf("failed to clear announcements: %w", err)
	}

	const stmt = `
		INSERT INTO announcements (id, media_url, display_duration, transition_type, order_index, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		if _, err := tx.Exec(
			stmt,
			item.ID,
			item.MediaURL,
			item.DisplayDuration,
			item.Transition,
			item.OrderIndex,
			item.CreatedAt.UTC().Format(time.RFC3339Nano),
			i,
		); err != nil {
			return fmt.Errorf("failed to insert announcement %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit announcements: %w", err)
	}
	return nil
}

// GetAnnouncements returns the stored snapshot in rotation order.
// Snapshot rows are already active and normalized; they can feed the
// scheduler directly.
func (d *Database) GetAnnouncements() ([]rotation.Announcement, error) {
	const query = `
		SELECT id, media_url, display_duration, transition_type, order_index, created_at
		FROM announcements
		ORDER BY position ASC
	`
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var items []rotation.Announcement
	for rows.Next() {
		var a rotation.Announcement
		var orderIndex sql.NullInt64
		var createdAt string
		if err := rows.Scan(&a.ID, &a.MediaURL, &a.DisplayDuration, &a.Transition, &orderIndex, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		if orderIndex.Valid {
			v := int(orderIndex.Int64)
			a.OrderIndex = &v
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", a.ID, err)
		}
		a.Active = true
		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

func (d *Database) GetSettings() (*Settings, error) {
	const query = `
		SELECT refresh_interval_minutes
		FROM display_settings
		WHERE singleton = 1
	`

	var interval int

	err := d.db.QueryRow(query).Scan(&interval)
	if err == sql.ErrNoRows {
		// Bootstrap defaults if no settings row exists yet
		defaults := &Settings{
			RefreshIntervalMinutes: 5,
		}
		if err := d.UpsertSettings(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &Settings{RefreshIntervalMinutes: interval}, nil
}

func (d *Database) UpsertSettings(s *Settings) error {
	const stmt = `
		INSERT INTO display_settings (
			singleton,
			refresh_interval_minutes
		) VALUES (1, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			refresh_interval_minutes = excluded.refresh_interval_minutes
	`

	if _, err := d.db.Exec(stmt, s.RefreshIntervalMinutes); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (d *Database) GetSchedule() (*Schedule, error) {
	const query = `
		SELECT enabled,
		       start,
		       end
		FROM screen_schedule
		WHERE singleton = 1
	`

	var enabled bool
	var start, end string

	err := d.db.QueryRow(query).Scan(&enabled, &start, &end)
	if err == sql.ErrNoRows {
		// Bootstrap disabled until the gateway supplies a schedule;
		// stale defaults must not flip the display
		defaults := &Schedule{
			Enabled: false,
			Start:   "06:00",
			End:     "23:00",
		}
		if err := d.UpsertSchedule(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	return &Schedule{
		Enabled: enabled,
		Start:   start,
		End:     end,
	}, nil
}

func (d *Database) UpsertSchedule(s *Schedule) error {
	const stmt = `
		INSERT INTO screen_schedule (
			singleton,
			enabled,
			start,
			end
		) VALUES (1, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			enabled = excluded.enabled,
			start   = excluded.start,
			end     = excluded.end
	`

	_, err := d.db.Exec(
		stmt,
		boolToInt(s.Enabled),
		s.Start,
		s.End,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Database) Close() error {
	return d.db.Close()
}
