package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	pgbackend "github.com/suanfamama/atelier/internal/backend/postgres"
	"github.com/suanfamama/atelier/internal/config"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL backend schema",
		Long: `Apply or roll back the schema used by the postgres backend. The
database URL comes from --database-url, ATELIER_DATABASE_URL or the
config file.`,
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL for the postgres backend")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := migrationURL(cmd)
			if err != nil {
				return err
			}

			cmd.Println("Applying migrations...")
			if err := pgbackend.MigrateUp(url); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}

			url, err := migrationURL(cmd)
			if err != nil {
				return err
			}

			cmd.Printf("Rolling back %d migration(s)...\n", steps)
			if err := pgbackend.MigrateDown(url, steps); err != nil {
				return err
			}
			cmd.Println("Rollback complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

// migrationURL reads the database URL without validating the rest of the
// configuration, so migrations run without backend credentials.
func migrationURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Read(configFile, cmd.Flags())
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", errors.New("database URL is required: set --database-url or ATELIER_DATABASE_URL")
	}
	return cfg.Database.URL, nil
}
