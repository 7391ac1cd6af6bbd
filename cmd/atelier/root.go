package main

import (
	"github.com/spf13/cobra"

	"github.com/suanfamama/atelier/internal/version"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the atelier CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atelier",
		Short: "Atelier - the Suanfamama fashion platform",
		Long: `Atelier serves the Suanfamama landing page, the account screens
and the JSON API on top of a Supabase or PostgreSQL backend.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(version.Get().String())
			return nil
		},
	}
}
