// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents one applied schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migrations is the ordered list of schema changes. Entries are append-only;
// editing an applied entry fails the checksum verification on startup.
var migrations = []struct {
	Version     int
	Description string
	SQL         string
}{
	{
		Version:     1,
		Description: "users and resize profiles",
		SQL: `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE resize_profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			width INTEGER NOT NULL CHECK(width > 0),
			height INTEGER NOT NULL CHECK(height > 0),
			include_horizontal INTEGER NOT NULL DEFAULT 1,
			include_vertical INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		);`,
	},
	{
		Version:     2,
		Description: "albums, images and album_images join",
		SQL: `
		CREATE TABLE albums (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			asset_count INTEGER NOT NULL DEFAULT 0,
			last_synced INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE images (
			asset_id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL DEFAULT '',
			is_downloaded INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE album_images (
			album_id TEXT NOT NULL REFERENCES albums(id),
			asset_id TEXT NOT NULL REFERENCES images(asset_id),
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (album_id, asset_id)
		);
		CREATE INDEX idx_album_images_active ON album_images(album_id, is_active);`,
	},
	{
		Version:     3,
		Description: "tasks",
		SQL: `
		CREATE TABLE tasks (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('download', 'resize')),
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK(status IN ('pending', 'processing', 'completed', 'error')),
			album_id TEXT NOT NULL DEFAULT '',
			album_name TEXT NOT NULL DEFAULT '',
			profile_id INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			processed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			started_at INTEGER NOT NULL DEFAULT 0,
			completed_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_tasks_status ON tasks(status);
		CREATE INDEX idx_tasks_album_profile ON tasks(album_id, profile_id);`,
	},
}

// Migrator applies schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL,
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in order, verifying checksums of
// already-applied versions along the way.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	applied, err := m.appliedChecksums()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		sum := checksum(mig.SQL)
		if existing, ok := applied[mig.Version]; ok {
			if existing != sum {
				return fmt.Errorf("migration %d was modified after being applied", mig.Version)
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description, sum,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) appliedChecksums() (map[int]string, error) {
	rows, err := m.db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, err
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

func checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
