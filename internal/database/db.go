package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDB initializes the database connection and creates tables if needed
func InitDB(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	log.Printf("Database initialized at %s", dbPath)
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS exports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	priority INTEGER NOT NULL DEFAULT 0,

	child_name TEXT NOT NULL,
	theme TEXT,
	audio_url TEXT NOT NULL,
	lyrics TEXT,
	image_urls TEXT,

	format TEXT,
	width INTEGER,
	height INTEGER,
	fps INTEGER,

	current_step TEXT,
	progress INTEGER,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,

	output_path TEXT,
	output_size INTEGER,
	mime_type TEXT,
	session_id TEXT,

	queued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at TIMESTAMP,
	completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status, priority DESC, queued_at ASC);
`

// Migrate applies the schema. Safe to run on every startup.
func Migrate() error {
	if _, err := DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Println("Database schema applied successfully")
	return nil
}
