// Package webhook routes inbound Jira and Slack-formatted payloads to the
// matching handler and keeps each Jira issue linked to one Slack thread.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danielolaszy/glue-relay/internal/format"
	"github.com/danielolaszy/glue-relay/internal/logging"
	slackblocks "github.com/danielolaszy/glue-relay/internal/slack"
	"github.com/danielolaszy/glue-relay/pkg/models"
)

// Acknowledgements returned to the webhook sender on success.
const (
	StatusChatProcessed = "Slack payload processed"
	StatusOK            = "OK"
)

// ChatTransport posts messages into the relay channel.
type ChatTransport interface {
	PostMessage(ctx context.Context, text string) (string, error)
	PostThreadReply(ctx context.Context, text, threadID string) error
}

// IssueTracker reads issues and writes the thread field.
type IssueTracker interface {
	GetIssue(ctx context.Context, issueKey string) (*models.Issue, error)
	SetCustomField(ctx context.Context, issueKey, fieldID, value string) error
}

// Options configures a Router.
type Options struct {
	// ThreadFieldID is the custom field holding the Slack thread id.
	ThreadFieldID string
	// DedupeCreate re-reads the issue before posting and skips creation events
	// for issues that already have a thread.
	DedupeCreate bool
	// LinkAttempts bounds the thread field writes after a thread is posted.
	LinkAttempts int
	// LinkRetryDelay is the first pause between link attempts; it doubles.
	LinkRetryDelay time.Duration
}

// Router classifies inbound payloads and dispatches them. It holds no mutable
// state and is safe for concurrent use.
type Router struct {
	chat    ChatTransport
	tracker IssueTracker
	opts    Options
}

// NewRouter creates a Router.
func NewRouter(chat ChatTransport, tracker IssueTracker, opts Options) *Router {
	opts.ThreadFieldID = models.NormalizeFieldID(opts.ThreadFieldID)
	if opts.LinkAttempts < 1 {
		opts.LinkAttempts = 1
	}
	return &Router{chat: chat, tracker: tracker, opts: opts}
}

// Handle processes one webhook body and returns the acknowledgement text.
// Unknown events and issues without a thread are acknowledged, not errors.
func (r *Router) Handle(ctx context.Context, body []byte) (string, error) {
	log := logging.FromContext(ctx)

	if len(bytes.TrimSpace(body)) == 0 {
		return "", &ValidationError{Reason: "No payload received"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", &ValidationError{Reason: "payload is not a JSON object", Err: err}
	}
	if raw == nil {
		return "", &ValidationError{Reason: "No payload received"}
	}

	c := Classify(raw)
	log.Debug("classified webhook payload", "kind", c.Kind.String(), "event", c.Event)

	if c.Kind == KindChat {
		if err := r.handleChat(ctx, body); err != nil {
			return "", err
		}
		return StatusChatProcessed, nil
	}

	if c.Kind == KindUnknown {
		log.Info("unhandled webhook event", "event", c.Event)
		return StatusOK, nil
	}

	event, err := decodeTrackerEvent(body)
	if err != nil {
		return "", err
	}

	switch c.Kind {
	case KindIssueCreated:
		issue, err := event.Issue.toIssue()
		if err != nil {
			return "", err
		}
		err = r.HandleIssueCreated(ctx, issue)
		if err != nil {
			return "", err
		}
	case KindIssueUpdated:
		err = r.HandleIssueUpdated(ctx, event.Issue.Key, event.Changelog.toItems(), event.EventType)
		if err != nil {
			return "", err
		}
	case KindCommentCreated:
		if event.Comment == nil {
			return "", &ValidationError{Reason: "comment event has no comment"}
		}
		err = r.HandleCommentCreated(ctx, event.Issue.Key, event.Comment.toComment())
		if err != nil {
			return "", err
		}
	}

	return StatusOK, nil
}

// handleChat relays a Slack-formatted payload, replying in thread when it
// names one.
func (r *Router) handleChat(ctx context.Context, body []byte) error {
	var payload chatPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return &ValidationError{Reason: "invalid chat payload", Err: err}
	}

	text := payload.Text
	if strings.TrimSpace(text) == "" {
		blockText, err := slackblocks.BlocksText(payload.Blocks)
		if err != nil {
			return &ValidationError{Reason: "invalid chat payload", Err: err}
		}
		text = blockText
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: "chat payload has no text"}
	}

	if payload.ThreadTS != "" {
		return r.chat.PostThreadReply(ctx, text, payload.ThreadTS)
	}
	_, err := r.chat.PostMessage(ctx, text)
	return err
}

// HandleIssueCreated posts a new thread for issue and links it back through
// the thread field.
func (r *Router) HandleIssueCreated(ctx context.Context, issue *models.Issue) error {
	log := logging.FromContext(ctx).With("issue", issue.Key)

	if r.opts.DedupeCreate {
		current, err := r.tracker.GetIssue(ctx, issue.Key)
		if err != nil {
			return fmt.Errorf("failed to check existing thread: %w", err)
		}
		if threadID := current.CustomFieldString(r.opts.ThreadFieldID); threadID != "" {
			log.Info("issue already linked to a thread, skipping creation", "thread_id", threadID)
			return nil
		}
	}

	threadID, err := r.chat.PostMessage(ctx, format.IssueCreated(issue))
	if err != nil {
		return fmt.Errorf("failed to post new issue message: %w", err)
	}

	if err := r.linkThread(ctx, issue.Key, threadID); err != nil {
		log.Error("slack thread posted but not linked to issue",
			"thread_id", threadID,
			"error", err)
		return err
	}

	log.Info("created slack thread for issue", "thread_id", threadID)
	return nil
}

// linkThread writes threadID into the thread field, retrying with a doubling
// delay. Exhausted attempts yield an OrphanThreadError.
func (r *Router) linkThread(ctx context.Context, issueKey, threadID string) error {
	delay := r.opts.LinkRetryDelay
	var err error

	for attempt := 1; attempt <= r.opts.LinkAttempts; attempt++ {
		err = r.tracker.SetCustomField(ctx, issueKey, r.opts.ThreadFieldID, threadID)
		if err == nil {
			return nil
		}
		if attempt == r.opts.LinkAttempts {
			break
		}

		logging.FromContext(ctx).Warn("failed to link thread, retrying",
			"issue", issueKey,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return &OrphanThreadError{IssueKey: issueKey, ThreadID: threadID, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return &OrphanThreadError{IssueKey: issueKey, ThreadID: threadID, Attempts: r.opts.LinkAttempts, Err: err}
}

// HandleIssueUpdated replies in the issue's thread with a summary of the
// change. Updates that only touch the thread field are our own write-back and
// are ignored.
func (r *Router) HandleIssueUpdated(ctx context.Context, issueKey string, changelog []models.ChangelogItem, eventType string) error {
	log := logging.FromContext(ctx).With("issue", issueKey)

	if r.isThreadFieldEcho(changelog) {
		log.Debug("ignoring thread field update")
		return nil
	}

	// Update payloads do not always carry custom fields, so read them fresh.
	issue, threadID, err := r.lookupThread(ctx, issueKey)
	if err != nil || threadID == "" {
		return err
	}

	if err := r.chat.PostThreadReply(ctx, format.IssueUpdated(issue, changelog, eventType), threadID); err != nil {
		return fmt.Errorf("failed to post update: %w", err)
	}

	log.Info("posted update to thread", "thread_id", threadID, "event_type", eventType)
	return nil
}

// HandleCommentCreated replies in the issue's thread with the comment. Each
// call posts a reply; identical comments are not deduplicated.
func (r *Router) HandleCommentCreated(ctx context.Context, issueKey string, comment *models.Comment) error {
	_, threadID, err := r.lookupThread(ctx, issueKey)
	if err != nil || threadID == "" {
		return err
	}

	if err := r.chat.PostThreadReply(ctx, format.Comment(issueKey, comment), threadID); err != nil {
		return fmt.Errorf("failed to post comment: %w", err)
	}

	logging.FromContext(ctx).Info("posted comment to thread", "issue", issueKey, "thread_id", threadID)
	return nil
}

// lookupThread re-fetches an issue and returns its thread id, which is empty
// when the issue was never linked.
func (r *Router) lookupThread(ctx context.Context, issueKey string) (*models.Issue, string, error) {
	issue, err := r.tracker.GetIssue(ctx, issueKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch issue: %w", err)
	}

	threadID := issue.CustomFieldString(r.opts.ThreadFieldID)
	if threadID == "" {
		logging.FromContext(ctx).Info("no thread ID found for issue", "issue", issueKey)
	}
	return issue, threadID, nil
}

func (r *Router) isThreadFieldEcho(changelog []models.ChangelogItem) bool {
	return len(changelog) == 1 &&
		models.NormalizeFieldID(changelog[0].FieldID) == r.opts.ThreadFieldID
}
