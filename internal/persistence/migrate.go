package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"aiblog/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one numbered SQL file, e.g. 001_initial_schema.sql.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

// MigrationManager applies the embedded Postgres migrations.
type MigrationManager struct {
	db    *sql.DB
	files fs.FS
	log   *slog.Logger
}

// NewMigrationManager creates a migration manager over the embedded files.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{
		db:    db,
		files: migrationFiles,
		log:   logger.Get().With("component", "migrate"),
	}
}

// Migrate applies every pending migration, each in its own transaction.
// It returns the number of migrations applied.
func (m *MigrationManager) Migrate(ctx context.Context) (int, error) {
	statuses, migrations, err := m.plan(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i, st := range statuses {
		if st.Applied {
			continue
		}
		if err := m.apply(ctx, migrations[i]); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", st.Version, err)
		}
		applied++
	}

	if applied == 0 {
		m.log.Info("No pending migrations")
	} else {
		m.log.Info("Migrations applied", "count", applied)
	}
	return applied, nil
}

// Status lists every known migration and whether it has been applied.
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, _, err := m.plan(ctx)
	return statuses, err
}

func (m *MigrationManager) plan(ctx context.Context) ([]MigrationStatus, []Migration, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	migrations, err := loadMigrations(m.files)
	if err != nil {
		return nil, nil, err
	}

	statuses := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		statuses[i] = MigrationStatus{Version: mig.Version, Description: mig.Description, Applied: done[mig.Version]}
	}
	return statuses, migrations, nil
}

func (m *MigrationManager) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (m *MigrationManager) apply(ctx context.Context, mig Migration) error {
	m.log.Info("Applying migration", "version", mig.Version, "description", mig.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, description)
		VALUES ($1, $2)
		ON CONFLICT (version) DO NOTHING
	`, mig.Version, mig.Description); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads NNN_description.sql files from migrations/ sorted by version.
func loadMigrations(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			logger.Warn("Skipping migration file with invalid name", "file", name)
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			logger.Warn("Skipping migration file with invalid version", "file", name)
			continue
		}
		content, err := fs.ReadFile(files, "migrations/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(strings.TrimSuffix(rest, ".sql"), "_", " "),
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
