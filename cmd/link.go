package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/jira"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/danielolaszy/glue-relay/internal/webhook"
	"github.com/spf13/cobra"
)

// linkCmd writes a thread id onto an issue. It repairs issues whose thread
// was posted but never linked.
var linkCmd = &cobra.Command{
	Use:   "link <issue-key> <thread-id>",
	Short: "Link a Jira issue to an existing Slack thread",
	Long: `Store a Slack thread id in the thread field of a Jira issue.

Use this after the relay logs that a thread was posted but could not be linked.
An issue that is already linked to a different thread is left alone unless
--force is given.

Example:
  glue link KAN-1 1700000000.000100`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

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

		changed, err := linkIssue(cmd.Context(), jiraClient, args[0], cfg.Jira.ThreadFieldID, args[1], force)
		if err != nil {
			return err
		}

		if changed {
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to thread %s\n", args[0], args[1])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already linked to thread %s\n", args[0], args[1])
		}
		return nil
	},
}

func init() {
	linkCmd.Flags().BoolP("force", "f", false, "Replace an existing link to a different thread")
}

// linkIssue stores threadID on the issue. It reports whether a write happened.
func linkIssue(ctx context.Context, tracker webhook.IssueTracker, issueKey, fieldID, threadID string, force bool) (bool, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return false, fmt.Errorf("thread id must not be empty")
	}

	existing, err := issueThread(ctx, tracker, issueKey, fieldID)
	if err != nil {
		return false, err
	}

	switch {
	case existing == threadID:
		return false, nil
	case existing != "" && !force:
		return false, fmt.Errorf("%s is already linked to thread %s, use --force to replace it", issueKey, existing)
	}

	if err := tracker.SetCustomField(ctx, issueKey, fieldID, threadID); err != nil {
		return false, fmt.Errorf("failed to link %s: %w", issueKey, err)
	}

	logging.Info("linked issue to thread",
		"issue", issueKey,
		"thread_id", threadID,
		"replaced", existing)
	return true, nil
}
