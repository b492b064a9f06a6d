// Package store persists user-added model records and chat sessions in
// SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migration.sql
var migrationSQL string

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("custom model not found")

// CustomModel is a user-added model. A local record points at FilePath,
// otherwise DownloadURL is fetched into the models directory.
type CustomModel struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	FilePath    string
	DownloadURL string
	SizeBytes   int64
	AddedAt     time.Time
	IsLocal     bool
}

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates the parent directory, opens the database and runs migrations.
// The path ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(migrationSQL); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

// Close closes the connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// ListCustom returns every record, newest first.
func (db *DB) ListCustom(ctx context.Context) ([]CustomModel, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, display_name, description, file_path,
		download_url, size_bytes, added_at, is_local FROM custom_models ORDER BY added_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list custom models: %w", err)
	}
	defer rows.Close()

	var out []CustomModel
	for rows.Next() {
		var m CustomModel
		var added int64
		if err := rows.Scan(&m.ID, &m.Name, &m.DisplayName, &m.Description, &m.FilePath,
			&m.DownloadURL, &m.SizeBytes, &added, &m.IsLocal); err != nil {
			return nil, fmt.Errorf("scan custom model: %w", err)
		}
		m.AddedAt = time.Unix(added, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddCustom inserts m and returns it with ID and AddedAt set.
func (db *DB) AddCustom(ctx context.Context, m CustomModel) (CustomModel, error) {
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now().UTC()
	}
	res, err := db.conn.ExecContext(ctx, `INSERT INTO custom_models
		(name, display_name, description, file_path, download_url, size_bytes, added_at, is_local)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.DisplayName, m.Description, m.FilePath, m.DownloadURL, m.SizeBytes, m.AddedAt.Unix(), m.IsLocal)
	if err != nil {
		return m, fmt.Errorf("insert custom model %s: %w", m.Name, err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return m, err
	}
	return m, nil
}

// DeleteCustom removes the record with the given name.
func (db *DB) DeleteCustom(ctx context.Context, name string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM custom_models WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete custom model %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
