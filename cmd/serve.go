package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/jira"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/danielolaszy/glue-relay/internal/server"
	"github.com/danielolaszy/glue-relay/internal/slack"
	"github.com/danielolaszy/glue-relay/internal/webhook"
	"github.com/spf13/cobra"
)

// serveCmd runs the webhook relay.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook relay server",
	Long: `Start an HTTP server that accepts Jira webhooks and relays them to Slack.

Endpoints:
  POST $WEBHOOK_PATH   (default /api/jira/webhook)
  GET  /health

Required environment:
  SLACK_BOT_TOKEN, SLACK_CHANNEL_ID
  JIRA_URL or JIRA_DOMAIN, JIRA_TOKEN, and JIRA_USERNAME for basic auth

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateSlackConfig(cfg); err != nil {
			return err
		}
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return err
		}

		err = logging.EnableSentry(logging.SentryOptions{
			DSN:         cfg.Log.SentryDSN,
			Environment: cfg.Log.Environment,
			Release:     "glue-relay@" + Version,
		})
		if err != nil {
			return err
		}
		defer logging.Flush(2 * time.Second)

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}
		slackClient := slack.NewClient(cfg.Slack)

		router := newRouter(cfg, slackClient, jiraClient)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logging.Info("starting relay",
			"version", Version,
			"thread_field", cfg.Jira.ThreadFieldID,
			"dedupe_create", cfg.Relay.DedupeCreate,
			"link_attempts", cfg.Relay.LinkAttempts)

		return server.New(cfg.Server, router).Run(ctx)
	},
}

// newRouter builds the webhook router from configuration.
func newRouter(cfg *config.Config, chat webhook.ChatTransport, tracker webhook.IssueTracker) *webhook.Router {
	return webhook.NewRouter(chat, tracker, webhook.Options{
		ThreadFieldID:  cfg.Jira.ThreadFieldID,
		DedupeCreate:   cfg.Relay.DedupeCreate,
		LinkAttempts:   cfg.Relay.LinkAttempts,
		LinkRetryDelay: cfg.Relay.LinkRetryDelay,
	})
}
