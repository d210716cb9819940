// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"strings"
)

// customFieldPrefix is the prefix Jira uses for custom field ids.
const customFieldPrefix = "customfield_"

// Issue represents a Jira issue snapshot with the fields the relay reads.
type Issue struct {
	// Key is the immutable issue identifier (e.g., "KAN-1")
	Key string

	// Summary is the issue's title
	Summary string

	// Status is the name of the current workflow status (e.g., "Open")
	Status string

	// Priority is the priority name, empty when unset
	Priority string

	// Assignee is the assignee's display name, empty when unassigned
	Assignee string

	// Description is the plain text description, empty when unset
	Description string

	// CustomFields maps custom field ids (e.g., "customfield_10039") to their raw values
	CustomFields map[string]any
}

// CustomFieldString returns the value stored in a custom field as a string.
// Missing, null and blank values all yield an empty string.
func (i *Issue) CustomFieldString(fieldID string) string {
	if i == nil || i.CustomFields == nil {
		return ""
	}

	value, ok := i.CustomFields[NormalizeFieldID(fieldID)]
	if !ok || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		// Select-list style fields carry their text in "value"
		if s, ok := v["value"].(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Comment represents a comment on a Jira issue.
type Comment struct {
	// Author is the display name of the comment author
	Author string

	// Body is the plain text comment body
	Body string
}

// ChangelogItem is a single field change delivered with an issue update event.
type ChangelogItem struct {
	// FieldID is the Jira field id (e.g., "status", "customfield_10039")
	FieldID string

	// Field is the human readable field name (e.g., "Status")
	Field string

	// FromString is the previous value rendered as text
	FromString string

	// ToString is the new value rendered as text
	ToString string
}

// NormalizeFieldID returns the canonical "customfield_<id>" form for bare numeric
// custom field ids. Any other id is returned trimmed but otherwise unchanged.
func NormalizeFieldID(fieldID string) string {
	fieldID = strings.TrimSpace(fieldID)
	if fieldID == "" || strings.HasPrefix(fieldID, customFieldPrefix) {
		return fieldID
	}
	for _, r := range fieldID {
		if r < '0' || r > '9' {
			return fieldID
		}
	}
	return customFieldPrefix + fieldID
}

// IsCustomField reports whether fieldID names a Jira custom field.
func IsCustomField(fieldID string) bool {
	return strings.HasPrefix(fieldID, customFieldPrefix)
}
