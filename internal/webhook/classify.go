package webhook

import (
	"encoding/json"
	"strings"
)

// Kind identifies which handling path an inbound payload takes.
type Kind int

const (
	// KindUnknown is a tracker event the router does not handle.
	KindUnknown Kind = iota
	// KindChat is a payload already formatted for Slack.
	KindChat
	// KindIssueCreated is a jira:issue_created event.
	KindIssueCreated
	// KindIssueUpdated is a jira:issue_updated event.
	KindIssueUpdated
	// KindCommentCreated is a comment_created event.
	KindCommentCreated
)

// Jira webhookEvent values.
const (
	EventIssueCreated   = "jira:issue_created"
	EventIssueUpdated   = "jira:issue_updated"
	EventCommentCreated = "comment_created"
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindIssueCreated:
		return "issue_created"
	case KindIssueUpdated:
		return "issue_updated"
	case KindCommentCreated:
		return "comment_created"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify. Event holds the raw webhookEvent
// value for tracker payloads.
type Classification struct {
	Kind  Kind
	Event string
}

// Classify decides how a decoded payload object is handled.
//
// An explicit "source" field wins: "chat"/"slack" selects the chat path and
// "tracker"/"jira" selects tracker handling. Without a recognised source the
// payload is sniffed: an object carrying both "channel" and "blocks" is chat
// formatted, anything else is a tracker event keyed by "webhookEvent".
func Classify(raw map[string]json.RawMessage) Classification {
	switch strings.ToLower(stringField(raw, "source")) {
	case "chat", "slack":
		return Classification{Kind: KindChat}
	case "tracker", "jira":
		return classifyTracker(raw)
	}

	_, hasChannel := raw["channel"]
	_, hasBlocks := raw["blocks"]
	if hasChannel && hasBlocks {
		return Classification{Kind: KindChat}
	}

	return classifyTracker(raw)
}

func classifyTracker(raw map[string]json.RawMessage) Classification {
	event := stringField(raw, "webhookEvent")

	switch event {
	case EventIssueCreated:
		return Classification{Kind: KindIssueCreated, Event: event}
	case EventIssueUpdated:
		return Classification{Kind: KindIssueUpdated, Event: event}
	case EventCommentCreated:
		return Classification{Kind: KindCommentCreated, Event: event}
	default:
		return Classification{Kind: KindUnknown, Event: event}
	}
}

// stringField returns raw[key] when it holds a JSON string, otherwise "".
func stringField(raw map[string]json.RawMessage, key string) string {
	value, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return ""
	}
	return s
}
