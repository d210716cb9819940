package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlack records chat.postMessage form posts and answers with a canned reply.
type fakeSlack struct {
	mu       sync.Mutex
	requests []url.Values
	reply    string
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat.postMessage" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, r.PostForm)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, f.reply)
}

func newTestClient(t *testing.T, reply string) (*Client, *fakeSlack) {
	t.Helper()
	fake := &fakeSlack{reply: reply}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := NewClient(config.SlackConfig{
		Token:     "xoxb-test",
		ChannelID: "C0123",
		APIURL:    srv.URL + "/",
	})
	return client, fake
}

func TestPostMessage(t *testing.T) {
	client, fake := newTestClient(t, `{"ok": true, "channel": "C0123", "ts": "167.001"}`)

	ts, err := client.PostMessage(context.Background(), "🆕 [KAN-1] New Issue Created: Fix bug")
	require.NoError(t, err)
	assert.Equal(t, "167.001", ts)

	require.Len(t, fake.requests, 1)
	form := fake.requests[0]
	assert.Equal(t, "C0123", form.Get("channel"))
	assert.Equal(t, "🆕 [KAN-1] New Issue Created: Fix bug", form.Get("text"))
	assert.Empty(t, form.Get("thread_ts"))
}

func TestPostThreadReply(t *testing.T) {
	client, fake := newTestClient(t, `{"ok": true, "channel": "C0123", "ts": "167.002"}`)

	err := client.PostThreadReply(context.Background(), "📝 [KAN-1] Updated", "167.001")
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "167.001", fake.requests[0].Get("thread_ts"))
	assert.Equal(t, "📝 [KAN-1] Updated", fake.requests[0].Get("text"))
}

func TestPostMessageFailure(t *testing.T) {
	client, _ := newTestClient(t, `{"ok": false, "error": "channel_not_found"}`)

	_, err := client.PostMessage(context.Background(), "hello")
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "post message", transportErr.Op)
	assert.Contains(t, err.Error(), "channel_not_found")

	err = client.PostThreadReply(context.Background(), "hello", "167.001")
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "post thread reply", transportErr.Op)
}

func TestPostMessageWithoutTimestamp(t *testing.T) {
	client, _ := newTestClient(t, `{"ok": true, "channel": "C0123"}`)

	_, err := client.PostMessage(context.Background(), "hello")
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Contains(t, err.Error(), "no message timestamp")
}

func TestBlocksText(t *testing.T) {
	testCases := []struct {
		name     string
		blocks   string
		expected string
		wantErr  bool
	}{
		{
			name: "Header and section with fields",
			blocks: `[
				{"type": "header", "text": {"type": "plain_text", "text": "🆕 New Issue: KAN-1"}},
				{"type": "section", "fields": [
					{"type": "mrkdwn", "text": "*Title:*\nFix bug"},
					{"type": "mrkdwn", "text": "*Status:*\nOpen"}
				]},
				{"type": "divider"},
				{"type": "section", "text": {"type": "mrkdwn", "text": "*Description:*\nIt crashes"}}
			]`,
			expected: "🆕 New Issue: KAN-1\n*Title:*\nFix bug\n*Status:*\nOpen\n*Description:*\nIt crashes",
		},
		{
			name:     "Empty array",
			blocks:   `[]`,
			expected: "",
		},
		{
			name:    "Not an array",
			blocks:  `{"type": "section"}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := BlocksText(json.RawMessage(tc.blocks))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, text)
		})
	}
}
