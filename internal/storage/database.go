package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS minds (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			narrative TEXT,
			tags_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			mind_id TEXT NOT NULL,
			content TEXT NOT NULL,
			cleaned_content TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (mind_id) REFERENCES minds(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feeds_mind ON feeds(mind_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS crystals (
			mind_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (mind_id) REFERENCES minds(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mind_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (mind_id) REFERENCES minds(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_mind ON chat_messages(mind_id, id);`,
		`CREATE TABLE IF NOT EXISTS mindmap_cache (
			mind_id TEXT PRIMARY KEY,
			tree_json TEXT NOT NULL,
			feed_count INTEGER NOT NULL,
			generated_at TEXT NOT NULL,
			FOREIGN KEY (mind_id) REFERENCES minds(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS outputs (
			id TEXT PRIMARY KEY,
			mind_id TEXT NOT NULL,
			instruction TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (mind_id) REFERENCES minds(id) ON DELETE CASCADE
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
