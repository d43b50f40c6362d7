// internal/cli/db.go
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/ui"
)

// dbCmd groups database maintenance commands.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the record database",
	Long: `Inspect and prepare the database scraped records are stored in.

The database is selected by --config, the CRAWLY_DB_* environment variables,
or a DSN saved with 'crawly db dsn set'.`,
	Example: `  # Create the records table
  crawly db init

  # Check connectivity and pool health
  crawly db ping

  # Save a DSN in the OS keyring for later runs
  crawly db dsn set "file:/var/lib/crawly/records.db"`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the records schema if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application := GetApp()
		factory, err := application.EnsureStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		if err := factory.Handler().EnsureSchema(cmd.Context()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s Schema ready\n", ui.Success("✓"))
		return nil
	},
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application := GetApp()
		factory, err := application.EnsureStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		if err := factory.Handler().Ping(cmd.Context()); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		pool := factory.Pool()
		fmt.Fprintf(os.Stdout, "%s Database reachable (%d/%d connections idle)\n",
			ui.Success("✓"), pool.Idle(), pool.Cap())
		return nil
	},
}

// dsn subcommands manage the stored fallback DSN; they never open the pool.
var dbDSNCmd = &cobra.Command{
	Use:   "dsn",
	Short: "Manage the saved database DSN",
	Long: `The DSN saved here is the weakest configuration source: it is used only
when neither config file, environment, nor flags provide one. It is kept in
the OS keyring when available, otherwise in a restricted file.`,
}

var dbDSNSetCmd = &cobra.Command{
	Use:   "set <dsn>",
	Short: "Save a DSN for later runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveDSN(args[0]); err != nil {
			return fmt.Errorf("failed to save DSN: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s DSN saved\n", ui.Success("✓"))
		return nil
	},
}

var dbDSNClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved DSN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DeleteDSN(); err != nil {
			return fmt.Errorf("failed to clear DSN: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s DSN cleared\n", ui.Success("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbPingCmd)
	dbCmd.AddCommand(dbDSNCmd)
	dbDSNCmd.AddCommand(dbDSNSetCmd)
	dbDSNCmd.AddCommand(dbDSNClearCmd)
}
