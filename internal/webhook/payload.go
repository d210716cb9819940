package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielolaszy/glue-relay/pkg/models"
)

// chatPayload is a message already shaped for Slack.
type chatPayload struct {
	Text     string          `json:"text"`
	ThreadTS string          `json:"thread_ts"`
	Blocks   json.RawMessage `json:"blocks"`
}

// trackerEvent is the subset of a Jira webhook body the router reads.
type trackerEvent struct {
	WebhookEvent string         `json:"webhookEvent"`
	EventType    string         `json:"issue_event_type_name"`
	Issue        *wireIssue     `json:"issue"`
	Comment      *wireComment   `json:"comment"`
	Changelog    *wireChangelog `json:"changelog"`
}

type wireIssue struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type wireNamed struct {
	Name string `json:"name"`
}

type wireUser struct {
	DisplayName string `json:"displayName"`
}

type wireComment struct {
	Author *wireUser `json:"author"`
	Body   richText  `json:"body"`
}

type wireChangelog struct {
	Items []wireChangelogItem `json:"items"`
}

type wireChangelogItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// decodeTrackerEvent decodes a tracker payload and checks it names an issue.
func decodeTrackerEvent(body []byte) (*trackerEvent, error) {
	var event trackerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &ValidationError{Reason: "invalid tracker payload", Err: err}
	}
	if event.Issue == nil || strings.TrimSpace(event.Issue.Key) == "" {
		return nil, &ValidationError{Reason: "tracker payload has no issue key"}
	}

	return &event, nil
}

// toIssue converts the webhook issue into our internal model. Custom fields
// are kept as decoded JSON values; null custom fields are dropped.
func (w *wireIssue) toIssue() (*models.Issue, error) {
	issue := &models.Issue{
		Key:          w.Key,
		CustomFields: make(map[string]any),
	}

	for key, value := range w.Fields {
		var err error
		switch key {
		case "summary":
			err = unmarshalOptional(value, &issue.Summary)
		case "status":
			var status wireNamed
			err = unmarshalOptional(value, &status)
			issue.Status = status.Name
		case "priority":
			var priority wireNamed
			err = unmarshalOptional(value, &priority)
			issue.Priority = priority.Name
		case "assignee":
			var assignee wireUser
			err = unmarshalOptional(value, &assignee)
			issue.Assignee = assignee.DisplayName
		case "description":
			var description richText
			err = json.Unmarshal(value, &description)
			issue.Description = string(description)
		default:
			if !models.IsCustomField(key) {
				continue
			}
			var v any
			if err = json.Unmarshal(value, &v); err == nil && v != nil {
				issue.CustomFields[key] = v
			}
		}
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid issue field %q", key), Err: err}
		}
	}

	return issue, nil
}

func (w *wireComment) toComment() *models.Comment {
	comment := &models.Comment{Body: string(w.Body)}
	if w.Author != nil {
		comment.Author = w.Author.DisplayName
	}
	return comment
}

func (c *wireChangelog) toItems() []models.ChangelogItem {
	if c == nil {
		return nil
	}
	items := make([]models.ChangelogItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, models.ChangelogItem{
			FieldID:    item.FieldID,
			Field:      item.Field,
			FromString: item.FromString,
			ToString:   item.ToString,
		})
	}
	return items
}

// unmarshalOptional decodes value into v, leaving v untouched for JSON null.
func unmarshalOptional(value json.RawMessage, v any) error {
	if string(value) == "null" {
		return nil
	}
	return json.Unmarshal(value, v)
}

// richText accepts either a plain string or an Atlassian Document Format
// object and keeps its text content.
type richText string

func (r *richText) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*r = ""
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = richText(s)
		return nil
	}

	var doc adfNode
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var b strings.Builder
	doc.writeText(&b)
	*r = richText(strings.TrimSpace(b.String()))
	return nil
}

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n *adfNode) writeText(b *strings.Builder) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
		return
	case "hardBreak":
		b.WriteString("\n")
		return
	}

	for i := range n.Content {
		n.Content[i].writeText(b)
	}

	switch n.Type {
	case "paragraph", "heading", "codeBlock":
		b.WriteString("\n")
	}
}
