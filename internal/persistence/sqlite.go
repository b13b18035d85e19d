package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	encodeTags: func(tags []string) (any, error) {
		b, err := json.Marshal(tags)
		return string(b), err
	},
	tagsDest: func(*[]string) any {
		return new(sql.NullString)
	},
	decodeTags: func(dest any, tags *[]string) error {
		raw := dest.(*sql.NullString)
		*tags = []string{}
		if !raw.Valid || raw.String == "" {
			return nil
		}
		return json.Unmarshal([]byte(raw.String), tags)
	},
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
}

// DefaultCategories seeds a new store. The tool category is added separately.
var DefaultCategories = []string{
	"AI & Machine Learning",
	"Developer Tools",
	"Cloud & Infrastructure",
	"Security & Privacy",
	"Hardware & Devices",
	"Startups & Business",
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS posts (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL,
	slug             TEXT NOT NULL UNIQUE,
	description      TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL,
	category         INTEGER,
	image_url        TEXT,
	tool_name        TEXT,
	read_time        INTEGER NOT NULL DEFAULT 1,
	tags             TEXT NOT NULL DEFAULT '[]',
	research_details TEXT,
	author           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'published',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category);
`

// SQLiteStore is a single-file content store for local development and tests.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway store.
func NewSQLiteStore(ctx context.Context, path, toolCategory string, timeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	seed := append(append([]string{}, DefaultCategories...), toolCategory)
	for _, title := range seed {
		if title == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (title) VALUES (?)`, title); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to seed category %q: %w", title, err)
		}
	}

	return &SQLiteStore{sqlStore: newSQLStore(db, sqliteDialect, toolCategory, timeout)}, nil
}
