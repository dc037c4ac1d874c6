package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database manages the SQLite database holding tuning history
type Database struct {
	db     *sql.DB
	dbPath string
}

// NewDatabase opens (creating if needed) the database at dbPath
func NewDatabase(dbPath string) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writes well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	database := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

func (d *Database) initSchema() error {
	schema := `
	-- System state table
	CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Cameras table
	CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		ip TEXT NOT NULL,
		rtsp_url TEXT NOT NULL,
		last_seen TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-cycle analysis samples
	CREATE TABLE IF NOT EXISTS metric_samples (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		taken_at TIMESTAMP NOT NULL,
		mean_brightness REAL,
		contrast REAL,
		clipped_highlights REAL,
		clipped_shadows REAL,
		exposure_score REAL,
		sharpness REAL,
		focus_score REAL,
		snapshot_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (camera_id) REFERENCES cameras(id) ON DELETE CASCADE
	);

	-- Settings adjustment audit trail
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		decided_at TIMESTAMP NOT NULL,
		iso_from INTEGER,
		iso_to INTEGER,
		ev_from REAL,
		ev_to REAL,
		aperture_from TEXT,
		aperture_to TEXT,
		shutter_from INTEGER,
		shutter_to INTEGER,
		confidence REAL NOT NULL,
		reasons TEXT, -- JSON array
		applied BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (camera_id) REFERENCES cameras(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_samples_camera_time ON metric_samples(camera_id, taken_at);
	CREATE INDEX IF NOT EXISTS idx_adjustments_camera_time ON adjustments(camera_id, decided_at);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
