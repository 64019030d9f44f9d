package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/treeroute/treeroute/internal/config"
	"github.com/treeroute/treeroute/internal/repository"
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStepsCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		return repository.Migrate(a.db, a.cfg.Database.Driver, a.log)
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Apply N migrations, or roll back when N is negative (PostgreSQL only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("invalid step count %q", args[0])
		}

		mg, closeApp, err := openMigrator()
		if err != nil {
			return err
		}
		defer closeApp()

		return mg.Steps(n)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version (PostgreSQL only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mg, closeApp, err := openMigrator()
		if err != nil {
			return err
		}
		defer closeApp()

		version, dirty, err := mg.Version()
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		out := cmd.OutOrStdout()
		if dirty {
			fmt.Fprintf(out, "%d (dirty)\n", version)
			return nil
		}
		fmt.Fprintln(out, version)
		return nil
	},
}

// openMigrator refuses to run against SQLite, whose schema is auto-migrated.
func openMigrator() (*repository.Migrator, func(), error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	closeApp := func() { _ = a.Close() }

	if a.cfg.Database.Driver != config.DriverPostgres {
		closeApp()
		return nil, nil, fmt.Errorf("versioned migrations require the %s driver, got %q", config.DriverPostgres, a.cfg.Database.Driver)
	}

	mg, err := repository.NewMigrator(a.db, a.log)
	if err != nil {
		closeApp()
		return nil, nil, err
	}
	return mg, closeApp, nil
}
