package media

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"storyweave/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// SQLiteRecords keeps media records in a local SQLite file.
type SQLiteRecords struct {
	db *sql.DB
}

var _ Records = (*SQLiteRecords)(nil)

// OpenSQLite returns an Opener for the database at path. Pending schema
// migrations are applied on open; existing rows are never rewritten.
func OpenSQLite(path string) Opener {
	return func(ctx context.Context) (Records, error) {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
		if err := applyMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &SQLiteRecords{db: db}, nil
	}
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		var found int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		up := string(content)
		if i := strings.Index(up, "-- +migrate Up"); i >= 0 {
			up = up[i+len("-- +migrate Up"):]
		}
		if j := strings.Index(up, "-- +migrate Down"); j >= 0 {
			up = up[:j]
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)", name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

func (r *SQLiteRecords) Put(ctx context.Context, rec *models.MediaRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO media (id, type, file_name, mime, created_at, blob) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Type), rec.FileName, rec.Mime, rec.CreatedAt.UnixMilli(), rec.Blob)
	if err != nil {
		return fmt.Errorf("insert media %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRecords) Get(ctx context.Context, id string) (*models.MediaRecord, error) {
	var (
		rec     models.MediaRecord
		typ     string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, type, file_name, mime, created_at, blob FROM media WHERE id = ?", id).
		Scan(&rec.ID, &typ, &rec.FileName, &rec.Mime, &created, &rec.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select media %s: %w", id, err)
	}
	rec.Type = models.PageType(typ)
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return &rec, nil
}

func (r *SQLiteRecords) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRecords) Close() error {
	return r.db.Close()
}
