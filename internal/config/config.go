// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielolaszy/glue-relay/pkg/models"
	"github.com/spf13/viper"
)

// DefaultThreadFieldID is the Jira custom field that stores the Slack thread id
// when JIRA_THREAD_FIELD_ID is not set.
const DefaultThreadFieldID = "customfield_10039"

// Jira authentication modes.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Slack  SlackConfig
	Jira   JiraConfig
	Server ServerConfig
	Relay  RelayConfig
	Log    LogConfig
}

// SlackConfig holds Slack specific configuration.
type SlackConfig struct {
	Token     string
	ChannelID string
	// APIURL overrides the Slack Web API base URL. Empty means the public API.
	APIURL string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL           string
	Username      string
	Token         string
	AuthMode      string
	ThreadFieldID string
}

// ServerConfig holds the inbound webhook server configuration.
type ServerConfig struct {
	Addr            string
	WebhookPath     string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// RelayConfig tunes the webhook router.
type RelayConfig struct {
	// DedupeCreate skips issue creation events for issues that already have a thread.
	DedupeCreate bool
	// LinkAttempts is how many times the thread id write is tried after posting.
	LinkAttempts int
	// LinkRetryDelay is the first delay between link attempts; it doubles each time.
	LinkRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	SentryDSN   string
	Environment string
}

// LoadConfig loads configuration from environment variables and, when configFile
// is not empty, from that file. Environment variables take precedence.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific environment variables
	bindings := map[string][]string{
		"slack.token":             {"SLACK_BOT_TOKEN", "SLACK_TOKEN"},
		"slack.channel_id":        {"SLACK_CHANNEL_ID"},
		"slack.api_url":           {"SLACK_API_URL"},
		"jira.url":                {"JIRA_URL"},
		"jira.domain":             {"JIRA_DOMAIN"},
		"jira.username":           {"JIRA_USERNAME", "JIRA_EMAIL"},
		"jira.token":              {"JIRA_TOKEN", "JIRA_API_TOKEN"},
		"jira.auth":               {"JIRA_AUTH"},
		"jira.thread_field_id":    {"JIRA_THREAD_FIELD_ID"},
		"server.addr":             {"LISTEN_ADDR"},
		"server.port":             {"PORT"},
		"server.webhook_path":     {"WEBHOOK_PATH"},
		"server.max_body_bytes":   {"MAX_BODY_BYTES"},
		"server.shutdown_timeout": {"SHUTDOWN_TIMEOUT"},
		"relay.dedupe_create":     {"RELAY_DEDUPE_CREATE"},
		"relay.link_attempts":     {"RELAY_LINK_ATTEMPTS"},
		"relay.link_retry_delay":  {"RELAY_LINK_RETRY_DELAY"},
		"log.level":               {"LOG_LEVEL"},
		"log.sentry_dsn":          {"SENTRY_DSN"},
		"log.environment":         {"SENTRY_ENVIRONMENT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault("jira.auth", AuthBasic)
	v.SetDefault("jira.thread_field_id", DefaultThreadFieldID)
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.webhook_path", "/api/jira/webhook")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("relay.dedupe_create", true)
	v.SetDefault("relay.link_attempts", 3)
	v.SetDefault("relay.link_retry_delay", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "production")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	addr := v.GetString("server.addr")
	if addr == "" {
		addr = ":" + v.GetString("server.port")
	}

	config := &Config{
		Slack: SlackConfig{
			Token:     v.GetString("slack.token"),
			ChannelID: v.GetString("slack.channel_id"),
			APIURL:    v.GetString("slack.api_url"),
		},
		Jira: JiraConfig{
			URL:           jiraBaseURL(v.GetString("jira.url"), v.GetString("jira.domain")),
			Username:      v.GetString("jira.username"),
			Token:         v.GetString("jira.token"),
			AuthMode:      strings.ToLower(v.GetString("jira.auth")),
			ThreadFieldID: models.NormalizeFieldID(v.GetString("jira.thread_field_id")),
		},
		Server: ServerConfig{
			Addr:            addr,
			WebhookPath:     v.GetString("server.webhook_path"),
			MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Relay: RelayConfig{
			DedupeCreate:   v.GetBool("relay.dedupe_create"),
			LinkAttempts:   v.GetInt("relay.link_attempts"),
			LinkRetryDelay: v.GetDuration("relay.link_retry_delay"),
		},
		Log: LogConfig{
			Level:       strings.ToLower(v.GetString("log.level")),
			SentryDSN:   v.GetString("log.sentry_dsn"),
			Environment: v.GetString("log.environment"),
		},
	}

	if config.Jira.ThreadFieldID == "" {
		config.Jira.ThreadFieldID = DefaultThreadFieldID
	}
	if config.Relay.LinkAttempts < 1 {
		config.Relay.LinkAttempts = 1
	}

	return config, nil
}

// jiraBaseURL prefers an explicit URL. A bare domain gets an https scheme and,
// when it has no dot, the Atlassian Cloud suffix.
func jiraBaseURL(url, domain string) string {
	if url != "" {
		return strings.TrimRight(url, "/")
	}
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" {
		return ""
	}
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	if !strings.Contains(domain, ".") {
		domain += ".atlassian.net"
	}
	return "https://" + domain
}

// ValidateSlackConfig validates Slack-specific configuration.
func ValidateSlackConfig(config *Config) error {
	var missingVars []string

	if config.Slack.Token == "" {
		missingVars = append(missingVars, "SLACK_BOT_TOKEN")
	}
	if config.Slack.ChannelID == "" {
		missingVars = append(missingVars, "SLACK_CHANNEL_ID")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.AuthMode == AuthBasic && config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if config.Jira.AuthMode != AuthBasic && config.Jira.AuthMode != AuthBearer {
		return fmt.Errorf("unsupported JIRA_AUTH %q, expected %q or %q", config.Jira.AuthMode, AuthBasic, AuthBearer)
	}

	return nil
}
