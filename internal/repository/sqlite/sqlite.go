// Package sqlite implements the repository interfaces on SQLite.
//
// The embedded document shape (user → wishes → likes/comments) is stored as
// four tables and reassembled on read:
//
//	users          one row per account, email UNIQUE
//	wishes         owner_id + position preserve the owner's append order
//	wish_likes     PRIMARY KEY (wish_id, user_id), so a like can't repeat
//	wish_comments  append-only, ordered by rowid
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain
// is needed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/wish-board/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps the sql.DB handle.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// dsnParams are applied by the driver to every connection it opens.
// _txlock=immediate makes BeginTx take the write lock up front, so a
// transaction's reads and writes see one snapshot.
const dsnParams = "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// New opens (or creates) the database at dbPath and runs migrations.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time. A single connection also keeps
	// ":memory:" databases from splitting into one database per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			profile_pic   TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// created_at is unix nanoseconds so the feed can sort on it numerically.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS wishes (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL REFERENCES users(id),
			position   INTEGER NOT NULL,
			text       TEXT NOT NULL,
			is_public  INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE (owner_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_wishes_public ON wishes(is_public, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating wishes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS wish_likes (
			wish_id TEXT NOT NULL REFERENCES wishes(id),
			user_id TEXT NOT NULL,
			PRIMARY KEY (wish_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS wish_comments (
			id         TEXT PRIMARY KEY,
			wish_id    TEXT NOT NULL REFERENCES wishes(id),
			user_id    TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_wish_comments_wish ON wish_comments(wish_id);
	`)
	if err != nil {
		return fmt.Errorf("creating like and comment tables: %w", err)
	}

	return nil
}

// inTx runs fn in a transaction that holds the write lock for its whole
// duration.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
