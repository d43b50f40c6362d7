// internal/cli/root.go
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/DONALDBZR/Crawly/internal/app"
	"github.com/DONALDBZR/Crawly/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crawly",
	Short: "A retry-aware web scraping engine with pluggable strategies",
	Long: `Crawly runs URLs through pluggable scraping strategies: fetch with
exponential backoff between failed attempts, extract fields from the payload,
and normalize them into canonical records that can be printed or persisted
through a pooled database connection.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command. It is called once by main.main(); the
// application itself is initialized lazily in PersistentPreRunE.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Lazily initialize the application before running commands. Help and
	// version short-circuit in cobra before this hook, so they stay cheap.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp() != nil {
			return nil
		}

		// cmd is the invoked command, so command-local flags are visible.
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout*10)
		defer cancel()
		application, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		for _, warning := range cfg.Warnings {
			application.Logger.Warn().Msg(warning)
		}

		SetApp(application)
		return nil
	}

	// Ensure the app is closed after the command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		application := GetApp()
		if application == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), application.Config.HTTPTimeout*10)
		defer cancel()
		_ = application.Close(ctx)
		SetApp(nil)
	}
}
