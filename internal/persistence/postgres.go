package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var postgresDialect = dialect{
	name:        "postgres",
	numbered:    true,
	returningID: true,
	encodeTags: func(tags []string) (any, error) {
		return pq.Array(tags), nil
	},
	tagsDest: func(tags *[]string) any {
		return pq.Array(tags)
	},
	decodeTags: func(any, *[]string) error { return nil },
	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
	},
}

// PostgresStore is the production content store (Supabase Postgres).
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore opens and pings a PostgreSQL connection pool.
func NewPostgresStore(ctx context.Context, dsn, toolCategory string, timeout time.Duration) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires a connection string")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresStore(db, toolCategory, timeout), nil
}

func newPostgresStore(db *sql.DB, toolCategory string, timeout time.Duration) *PostgresStore {
	return &PostgresStore{sqlStore: newSQLStore(db, postgresDialect, toolCategory, timeout)}
}

// DB exposes the pool for migrations.
func (p *PostgresStore) DB() *sql.DB {
	return p.db
}
