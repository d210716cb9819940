// Package slack posts relay messages into the configured Slack channel.
package slack

import (
	"context"
	"fmt"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API the client uses.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client posts messages and thread replies to a single channel.
type Client struct {
	api       API
	channelID string
}

// TransportError reports a failed Slack API call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("slack %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewClient creates a Slack client from configuration.
func NewClient(cfg config.SlackConfig) *Client {
	var options []slack.Option
	if cfg.APIURL != "" {
		options = append(options, slack.OptionAPIURL(cfg.APIURL))
	}

	logging.Info("slack configuration",
		"channel", cfg.ChannelID,
		"token", logging.MaskSensitive(cfg.Token))

	return NewClientWithAPI(slack.New(cfg.Token, options...), cfg.ChannelID)
}

// NewClientWithAPI creates a client on top of an existing API implementation.
func NewClientWithAPI(api API, channelID string) *Client {
	return &Client{api: api, channelID: channelID}
}

// PostMessage posts a new top-level message and returns its timestamp, which
// identifies the thread that replies will be attached to.
func (c *Client) PostMessage(ctx context.Context, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(text, false))
	if err != nil {
		return "", &TransportError{Op: "post message", Err: err}
	}
	if ts == "" {
		return "", &TransportError{Op: "post message", Err: fmt.Errorf("response carried no message timestamp")}
	}

	logging.Debug("posted slack message", "channel", c.channelID, "ts", ts)
	return ts, nil
}

// PostThreadReply posts text as a reply in the thread rooted at threadID.
func (c *Client) PostThreadReply(ctx context.Context, text, threadID string) error {
	_, ts, err := c.api.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadID))
	if err != nil {
		return &TransportError{Op: "post thread reply", Err: err}
	}

	logging.Debug("posted slack thread reply", "channel", c.channelID, "thread_ts", threadID, "ts", ts)
	return nil
}
