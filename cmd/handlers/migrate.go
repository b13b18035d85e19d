package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"aiblog/internal/config"
	"aiblog/internal/logger"
	"aiblog/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the Postgres content store schema.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status

The migration system tracks applied migrations in the schema_migrations table
and applies new migrations in sequential order. The SQLite store creates its
schema when it is opened and needs no migrations.

Examples:
  # Apply all pending migrations
  aiblog migrate up

  # Check migration status
  aiblog migrate status`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Long: `Apply all pending database migrations.

This command will:
  • Create schema_migrations table if it doesn't exist
  • Apply all pending migrations in order, each in its own transaction
  • Record each migration in schema_migrations

Example:
  aiblog migrate up`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long: `Show which migrations have been applied and which are pending.

Example:
  aiblog migrate status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context())
		},
	}
}

func runMigrateUp(ctx context.Context) error {
	log := logger.Get()
	log.Info("Starting database migration")

	migrator, closeDB, err := openMigrator(ctx)
	if err != nil || migrator == nil {
		return err
	}
	defer closeDB()

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if applied == 0 {
		fmt.Println("✅ Database is up to date")
		return nil
	}
	fmt.Printf("✅ Applied %d migration(s)\n", applied)
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	migrator, closeDB, err := openMigrator(ctx)
	if err != nil || migrator == nil {
		return err
	}
	defer closeDB()

	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println("📊 Migration Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	appliedCount := 0
	pendingCount := 0

	for _, m := range status {
		statusStr := "pending"
		statusIcon := "⏳"
		if m.Applied {
			statusStr = "applied"
			statusIcon = "✅"
			appliedCount++
		} else {
			pendingCount++
		}

		fmt.Printf("%-10d %s %-8s %s\n", m.Version, statusIcon, statusStr, m.Description)
	}

	fmt.Println()
	fmt.Printf("Applied: %d | Pending: %d | Total: %d\n", appliedCount, pendingCount, len(status))

	if pendingCount > 0 {
		fmt.Println("\nRun 'aiblog migrate up' to apply pending migrations")
	}

	return nil
}

// openMigrator connects to Postgres. For SQLite it prints a notice and
// returns a nil migrator.
func openMigrator(ctx context.Context) (*persistence.MigrationManager, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Get()

	switch cfg.Store.Driver {
	case "sqlite":
		fmt.Println("SQLite store creates its schema when opened; nothing to migrate")
		return nil, func() {}, nil
	case "postgres", "":
	default:
		return nil, nil, fmt.Errorf("%w: %s", persistence.ErrUnsupportedDriver, cfg.Store.Driver)
	}

	timeout := config.Duration(cfg.Store.Timeout, persistence.DefaultTimeout)
	store, err := persistence.NewPostgresStore(ctx, cfg.Store.DSN, cfg.Pipeline.ToolCategory, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	closeDB := func() {
		if err := store.Close(); err != nil {
			logger.Get().Warn("Failed to close database", "error", err.Error())
		}
	}
	return persistence.NewMigrationManager(store.DB()), closeDB, nil
}
