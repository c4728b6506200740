package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Pragmas are set through the DSN so every pooled connection gets them,
// foreign keys in particular (cascading deletes depend on it).
const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dataSourceName+pragmas)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS readers (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_staff INTEGER NOT NULL DEFAULT 0,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS books (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL COLLATE NOCASE,
		author TEXT NOT NULL COLLATE NOCASE,
		cover_url TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (title, author)
	);

	CREATE TABLE IF NOT EXISTS genres (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS book_genres (
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		genre_id TEXT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
		PRIMARY KEY (book_id, genre_id)
	);

	CREATE TABLE IF NOT EXISTS to_be_read (
		id TEXT NOT NULL PRIMARY KEY,
		reader_id TEXT NOT NULL REFERENCES readers(id) ON DELETE CASCADE,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		added_date DATETIME NOT NULL,
		UNIQUE (reader_id, book_id)
	);

	CREATE TABLE IF NOT EXISTS currently_reading (
		id TEXT NOT NULL PRIMARY KEY,
		reader_id TEXT NOT NULL REFERENCES readers(id) ON DELETE CASCADE,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		start_date DATETIME NOT NULL,
		UNIQUE (reader_id, book_id)
	);

	CREATE TABLE IF NOT EXISTS read_books (
		id TEXT NOT NULL PRIMARY KEY,
		reader_id TEXT NOT NULL REFERENCES readers(id) ON DELETE CASCADE,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		finish_date DATETIME NOT NULL,
		review TEXT,
		rating INTEGER CHECK (rating IS NULL OR (rating >= 1 AND rating <= 5)),
		UNIQUE (reader_id, book_id)
	);

	CREATE TABLE IF NOT EXISTS activity (
		id TEXT NOT NULL PRIMARY KEY,
		reader_id TEXT NOT NULL REFERENCES readers(id) ON DELETE CASCADE,
		type TEXT NOT NULL, -- e.g. tbr.add, reading.finish
		message TEXT NOT NULL,
		book_id TEXT REFERENCES books(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_reader ON activity(reader_id, created_at);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
