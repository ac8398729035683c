// Package library persists combined animation libraries as SQLite files.
package library

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// FormatVersion is stored in every library and checked on load.
const FormatVersion = "1"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bones (
	idx           INTEGER PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	parent        TEXT NOT NULL DEFAULT '',
	head          TEXT NOT NULL,
	tail          TEXT NOT NULL,
	rotation_mode TEXT NOT NULL DEFAULT 'XYZ'
);

CREATE TABLE IF NOT EXISTS attachments (
	idx   INTEGER PRIMARY KEY,
	name  TEXT NOT NULL,
	local TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
	idx         INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	lane        INTEGER NOT NULL,
	start_frame REAL NOT NULL,
	end_frame   REAL NOT NULL,
	loop        INTEGER NOT NULL DEFAULT 0,
	clip        TEXT NOT NULL,
	fps         REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS curves (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	track   INTEGER NOT NULL REFERENCES tracks(idx) ON DELETE CASCADE,
	ord     INTEGER NOT NULL,
	bone    TEXT NOT NULL,
	channel TEXT NOT NULL,
	axis    INTEGER NOT NULL,
	UNIQUE(track, ord)
);

CREATE TABLE IF NOT EXISTS keyframes (
	curve INTEGER NOT NULL REFERENCES curves(id) ON DELETE CASCADE,
	ord   INTEGER NOT NULL,
	time  REAL NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY(curve, ord)
);

CREATE TABLE IF NOT EXISTS sources (
	name     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_curves_track ON curves(track);
`

// DB wraps a sql.DB holding one library.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=DELETE&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("library: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("library: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("library: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
