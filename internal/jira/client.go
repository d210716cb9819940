// Package jira provides functionality for interacting with the JIRA API.
package jira

import (
	"context"
	"fmt"
	"net/http"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/danielolaszy/glue-relay/pkg/models"
	"golang.org/x/oauth2"
)

// Client handles interactions with the JIRA API.
type Client struct {
	client *jira.Client
}

// NewClient creates a JIRA client from configuration. Basic auth uses the
// username and API token; bearer auth sends the token as a personal access token.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("JIRA_URL is required")
	}

	var httpClient *http.Client
	switch cfg.AuthMode {
	case config.AuthBearer:
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	default:
		tp := jira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.Token,
		}
		httpClient = tp.Client()
	}

	logging.Info("jira configuration",
		"url", cfg.URL,
		"auth", cfg.AuthMode,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	return NewClientWithHTTP(httpClient, cfg.URL)
}

// NewClientWithHTTP creates a JIRA client that sends requests through httpClient.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}
	return &Client{client: client}, nil
}

// GetIssue fetches the current state of an issue, including its custom fields.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*models.Issue, error) {
	if c.client == nil {
		return nil, fmt.Errorf("JIRA client not initialized")
	}

	logging.Debug("fetching jira issue", "issue", issueKey)

	issue, resp, err := c.client.Issue.GetWithContext(ctx, issueKey, nil)
	if err != nil {
		return nil, newTrackerError("get issue "+issueKey, resp, err)
	}

	return toModel(issue), nil
}

// SetCustomField writes value into the custom field fieldID of an issue.
// Bare numeric field ids are expanded to "customfield_<id>".
func (c *Client) SetCustomField(ctx context.Context, issueKey, fieldID, value string) error {
	if c.client == nil {
		return fmt.Errorf("JIRA client not initialized")
	}

	fieldID = models.NormalizeFieldID(fieldID)
	logging.Debug("updating jira custom field",
		"issue", issueKey,
		"field", fieldID,
		"value", value)

	data := map[string]interface{}{
		"fields": map[string]interface{}{
			fieldID: value,
		},
	}

	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, issueKey, data)
	if err != nil {
		return newTrackerError("update issue "+issueKey, resp, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return nil
}

// toModel converts a go-jira issue into our internal model.
func toModel(issue *jira.Issue) *models.Issue {
	result := &models.Issue{
		Key:          issue.Key,
		CustomFields: make(map[string]any),
	}

	fields := issue.Fields
	if fields == nil {
		return result
	}

	result.Summary = fields.Summary
	result.Description = fields.Description
	if fields.Status != nil {
		result.Status = fields.Status.Name
	}
	if fields.Priority != nil {
		result.Priority = fields.Priority.Name
	}
	if fields.Assignee != nil {
		result.Assignee = fields.Assignee.DisplayName
	}

	for key, value := range fields.Unknowns {
		if models.IsCustomField(key) && value != nil {
			result.CustomFields[key] = value
		}
	}

	return result
}
