package cmd

import (
	"context"
	"fmt"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/jira"
	"github.com/danielolaszy/glue-relay/internal/webhook"
	"github.com/spf13/cobra"
)

// threadCmd prints the Slack thread linked to an issue.
var threadCmd = &cobra.Command{
	Use:   "thread <issue-key>",
	Short: "Show the Slack thread linked to a Jira issue",
	Long: `Read the thread field of a Jira issue and print the Slack thread id stored in it.

Example:
  glue thread KAN-1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return err
		}

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}

		threadID, err := issueThread(cmd.Context(), jiraClient, args[0], cfg.Jira.ThreadFieldID)
		if err != nil {
			return err
		}

		if threadID == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not linked to a Slack thread\n", args[0])
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), threadID)
		return nil
	},
}

// issueThread returns the thread id stored on an issue, or "" when none is.
func issueThread(ctx context.Context, tracker webhook.IssueTracker, issueKey, fieldID string) (string, error) {
	issue, err := tracker.GetIssue(ctx, issueKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch issue %s: %w", issueKey, err)
	}
	return issue.CustomFieldString(fieldID), nil
}
