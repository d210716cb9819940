package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/webhook"
	"github.com/danielolaszy/glue-relay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threadField = "customfield_10039"

// MockTracker implements webhook.IssueTracker for testing.
type MockTracker struct {
	GetIssueFunc       func(issueKey string) (*models.Issue, error)
	SetCustomFieldFunc func(issueKey, fieldID, value string) error
	writes             []string
}

func (m *MockTracker) GetIssue(ctx context.Context, issueKey string) (*models.Issue, error) {
	if m.GetIssueFunc != nil {
		return m.GetIssueFunc(issueKey)
	}
	return &models.Issue{Key: issueKey}, nil
}

func (m *MockTracker) SetCustomField(ctx context.Context, issueKey, fieldID, value string) error {
	m.writes = append(m.writes, issueKey+" "+fieldID+"="+value)
	if m.SetCustomFieldFunc != nil {
		return m.SetCustomFieldFunc(issueKey, fieldID, value)
	}
	return nil
}

// MockChat implements webhook.ChatTransport for testing.
type MockChat struct {
	posts int
}

func (m *MockChat) PostMessage(ctx context.Context, text string) (string, error) {
	m.posts++
	return "167.001", nil
}

func (m *MockChat) PostThreadReply(ctx context.Context, text, threadID string) error {
	return nil
}

func issueWithThread(threadID string) func(string) (*models.Issue, error) {
	return func(key string) (*models.Issue, error) {
		issue := &models.Issue{Key: key, CustomFields: map[string]any{}}
		if threadID != "" {
			issue.CustomFields[threadField] = threadID
		}
		return issue, nil
	}
}

func TestIssueThread(t *testing.T) {
	tracker := &MockTracker{GetIssueFunc: issueWithThread("167.001")}

	threadID, err := issueThread(context.Background(), tracker, "KAN-1", threadField)
	require.NoError(t, err)
	assert.Equal(t, "167.001", threadID)

	tracker.GetIssueFunc = func(string) (*models.Issue, error) { return nil, errors.New("404") }
	_, err = issueThread(context.Background(), tracker, "KAN-1", threadField)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAN-1")
}

func TestLinkIssue(t *testing.T) {
	testCases := []struct {
		name           string
		existing       string
		threadID       string
		force          bool
		expectedChange bool
		expectedWrites int
		expectError    bool
	}{
		{name: "Unlinked issue", existing: "", threadID: "167.001", expectedChange: true, expectedWrites: 1},
		{name: "Same thread is a no-op", existing: "167.001", threadID: "167.001"},
		{name: "Different thread refused", existing: "100.001", threadID: "167.001", expectError: true},
		{name: "Different thread forced", existing: "100.001", threadID: "167.001", force: true, expectedChange: true, expectedWrites: 1},
		{name: "Blank thread id", existing: "", threadID: "  ", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := &MockTracker{GetIssueFunc: issueWithThread(tc.existing)}

			changed, err := linkIssue(context.Background(), tracker, "KAN-1", threadField, tc.threadID, tc.force)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedChange, changed)
			assert.Len(t, tracker.writes, tc.expectedWrites)
		})
	}
}

func TestLinkIssueWriteFailure(t *testing.T) {
	writeErr := errors.New("field not on screen")
	tracker := &MockTracker{
		GetIssueFunc:       issueWithThread(""),
		SetCustomFieldFunc: func(string, string, string) error { return writeErr },
	}

	_, err := linkIssue(context.Background(), tracker, "KAN-1", threadField, "167.001", false)
	assert.ErrorIs(t, err, writeErr)
}

func TestNewRouterUsesRelayConfig(t *testing.T) {
	cfg := &config.Config{
		Jira:  config.JiraConfig{ThreadFieldID: threadField},
		Relay: config.RelayConfig{DedupeCreate: true, LinkAttempts: 2, LinkRetryDelay: time.Millisecond},
	}
	chat := &MockChat{}
	tracker := &MockTracker{GetIssueFunc: issueWithThread("167.001")}

	router := newRouter(cfg, chat, tracker)
	status, err := router.Handle(context.Background(), []byte(`{"webhookEvent": "jira:issue_created", "issue": {"key": "KAN-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusOK, status)
	assert.Zero(t, chat.posts, "dedupe skips issues that already have a thread")
}

// fakeJira serves a single issue over the Jira REST API.
type fakeJira struct {
	fields map[string]any
	puts   []map[string]map[string]string
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rest/api/2/issue/KAN-1" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"key": "KAN-1", "fields": f.fields})
	case http.MethodPut:
		var body map[string]map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.puts = append(f.puts, body)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func runCommand(t *testing.T, jira *fakeJira, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(jira)
	t.Cleanup(srv.Close)

	for _, name := range []string{"JIRA_DOMAIN", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_AUTH", "JIRA_THREAD_FIELD_ID", "LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	t.Setenv("JIRA_URL", srv.URL)
	t.Setenv("JIRA_USERNAME", "bot@acme.test")
	t.Setenv("JIRA_TOKEN", "secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestThreadCommand(t *testing.T) {
	jira := &fakeJira{fields: map[string]any{"summary": "Fix bug", threadField: "167.001"}}

	out, err := runCommand(t, jira, "thread", "KAN-1", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "167.001\n", out)
}

func TestThreadCommandUnlinked(t *testing.T) {
	jira := &fakeJira{fields: map[string]any{"summary": "Fix bug"}}

	out, err := runCommand(t, jira, "thread", "KAN-1", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "not linked")
}

func TestLinkCommand(t *testing.T) {
	jira := &fakeJira{fields: map[string]any{"summary": "Fix bug"}}

	out, err := runCommand(t, jira, "link", "KAN-1", "167.001", "--force=false", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Linked KAN-1")
	require.Len(t, jira.puts, 1)
	assert.Equal(t, "167.001", jira.puts[0]["fields"][threadField])
}

func TestLinkCommandRefusesOverwrite(t *testing.T) {
	jira := &fakeJira{fields: map[string]any{"summary": "Fix bug", threadField: "100.001"}}

	_, err := runCommand(t, jira, "link", "KAN-1", "167.001", "--force=false", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	assert.Empty(t, jira.puts)
}
