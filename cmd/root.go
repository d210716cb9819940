// Package cmd provides the command-line interface for the glue relay.
package cmd

import (
	"fmt"
	"os"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/spf13/cobra"
)

// Version is reported in logs and to Sentry as the release.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "glue",
	Short: "Glue relays Jira issue activity into Slack threads",
	Long: `Glue receives Jira webhooks and posts issue activity to a Slack channel.

Each new issue starts a Slack thread. The thread id is stored on the issue in a
custom field, and later updates and comments on the issue are posted as replies
in that thread. Payloads that are already formatted for Slack are passed through.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml, json or toml); environment variables take precedence")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(linkCmd)
}

// loadConfig loads configuration for cmd and applies the resulting log level.
// An explicit --log-level wins over the configured one.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	logging.SetupLogger(os.Stdout, logging.LogLevel(cfg.Log.Level))

	return cfg, nil
}
