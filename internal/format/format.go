// Package format renders Jira issue activity as Slack message text.
package format

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/glue-relay/pkg/models"
)

// Jira issue event type names that select a specific update message.
const (
	EventIssueAssigned = "issue_assigned"
	EventIssueUpdated  = "issue_updated"
	EventIssueGeneric  = "issue_generic"
)

// trackedFields maps changelog field ids to the label shown in update messages.
// The order of updateRowOrder decides the order of rows in the message.
var trackedFields = map[string]string{
	"status":   "Status",
	"priority": "Priority",
	"assignee": "Assignee",
}

var updateRowOrder = []string{"status", "priority", "assignee"}

// IssueCreated formats the top-level message announcing a new issue.
func IssueCreated(issue *models.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 [%s] New Issue Created: %s\n", issue.Key, issue.Summary)
	fmt.Fprintf(&b, "Priority: %s\n", orDefault(issue.Priority, "Not set"))
	fmt.Fprintf(&b, "Status: %s\n", issue.Status)
	if issue.Assignee != "" {
		fmt.Fprintf(&b, "Assignee: %s\n", issue.Assignee)
	}
	fmt.Fprintf(&b, "Description: %s", orDefault(issue.Description, "No description provided"))
	return b.String()
}

// IssueUpdated formats a thread reply describing an issue update.
//
// Status, priority and assignee changes found in the changelog are listed one per
// row. When none of them changed the message falls back to the event type name.
func IssueUpdated(issue *models.Issue, changelog []models.ChangelogItem, eventType string) string {
	rows := updateRows(changelog)
	if len(rows) > 0 {
		return fmt.Sprintf("📝 [%s] Updated\n%s", issue.Key, strings.Join(rows, "\n"))
	}

	switch eventType {
	case EventIssueAssigned:
		return fmt.Sprintf("👤 [%s] Issue assigned to %s", issue.Key, orDefault(issue.Assignee, "Unassigned"))
	case "", EventIssueUpdated, EventIssueGeneric:
		return fmt.Sprintf("📝 [%s] Issue updated", issue.Key)
	default:
		return fmt.Sprintf("📝 [%s] Issue updated (%s)", issue.Key, eventType)
	}
}

// Comment formats a thread reply for a new comment.
func Comment(issueKey string, comment *models.Comment) string {
	return fmt.Sprintf("💬 [%s] Comment by %s:\n%s", issueKey, orDefault(comment.Author, "Unknown"), comment.Body)
}

func updateRows(changelog []models.ChangelogItem) []string {
	changes := make(map[string]models.ChangelogItem)
	for _, item := range changelog {
		id := changelogFieldKey(item)
		if _, ok := trackedFields[id]; ok {
			// Later records win when Jira reports the same field twice
			changes[id] = item
		}
	}

	var rows []string
	for _, id := range updateRowOrder {
		item, ok := changes[id]
		if !ok {
			continue
		}
		empty := "None"
		if id == "assignee" {
			empty = "Unassigned"
		}
		rows = append(rows, fmt.Sprintf("%s: %s → %s",
			trackedFields[id],
			orDefault(item.FromString, empty),
			orDefault(item.ToString, empty)))
	}
	return rows
}

func changelogFieldKey(item models.ChangelogItem) string {
	if item.FieldID != "" {
		return strings.ToLower(item.FieldID)
	}
	return strings.ToLower(item.Field)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
