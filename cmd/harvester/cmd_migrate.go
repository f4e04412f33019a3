package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/disease-literature-harvester/internal/database"
	"github.com/helixir/disease-literature-harvester/internal/observability"
	"github.com/helixir/disease-literature-harvester/migrations"
)

const migrateConnectTimeout = 30 * time.Second

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Migrate applies the embedded schema migrations to the database named in
the database section of the configuration.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			if err := m.Up(); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			if err := m.Down(); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Run N migration steps (positive=up, negative=down)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
		}
		return withMigrator(cmd, func(m *database.Migrator) error {
			if err := m.Steps(n); err != nil {
				return fmt.Errorf("migrate steps: %w", err)
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the migration version without running migrations",
	Long:  "Force records VERSION as applied and clears the dirty flag, to recover from a failed migration.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
		}
		return withMigrator(cmd, func(m *database.Migrator) error {
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd, migrateForceCmd)
}

// withMigrator connects to the database and runs fn with a migrator over
// the embedded migrations.
func withMigrator(cmd *cobra.Command, fn func(*database.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.WithComponent(newLogger(cfg.Logging), "migrate")

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateConnectTimeout)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrations.FS, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	return fn(migrator)
}

func printVersion(w io.Writer, m *database.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	fmt.Fprintf(w, "schema version %d", v)
	if dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)
	return nil
}
