package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"butterfly/internal/config"
	"butterfly/internal/errors"
	"butterfly/internal/logger"
)

var (
	configPath  string
	logJSONFlag bool
	logLevel    string

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "butterfly",
	Short: "Butterfly - incremental graph exploration of related articles",
	Long: `Butterfly grows a node-link graph one click at a time.

Each session starts from a seed article. Clicking a node asks the related
articles service for what followed, merges the answer into the graph and
re-runs the force layout. Clients render scene patches streamed over SSE or
WebSocket.

Available commands:
  serve    - Start the session API (optionally with the bundled catalog)
  catalog  - Import, export or serve the reference article catalog

Examples:
  butterfly serve --embedded --catalog-source articles.yaml
  butterfly catalog import articles.yaml --db catalog.db
  butterfly catalog serve --db catalog.db --addr :9090`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, err := config.Load(configPath)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration %s", path)
		}
		cfg = loaded

		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON = logJSONFlag
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		if path != "" {
			logger.Logger.Debugw("Configuration loaded", "path", path)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $BUTTERFLY_CONFIG or ./butterfly.yaml)")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "emit JSON logs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
