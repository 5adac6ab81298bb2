package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
// SQLite allows one writer at a time, so the pool is capped at a single connection.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(dataSourceName))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL CHECK (name <> ''),
		path TEXT NOT NULL CHECK (path <> ''),
		last_backup_id INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS backups (
		target_id TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		id INTEGER NOT NULL CHECK (id > 0),
		created_at TEXT NOT NULL, -- canonical ISO-8601 UTC instant
		note TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (target_id, id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		target_id TEXT,
		backup_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT NOT NULL PRIMARY KEY,
		target_id TEXT NOT NULL,
		name TEXT NOT NULL,
		cron_expression TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_run_at DATETIME,
		next_run_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at);
	CREATE INDEX IF NOT EXISTS idx_schedules_target ON schedules (target_id);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
