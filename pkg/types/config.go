// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every outbound client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (API_TIMEOUT, default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-notifier/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ArxivConfig holds the search criteria for the arXiv source.
type ArxivConfig struct {
	// Keywords are matched against all fields. A single keyword containing
	// AND/OR or parentheses is treated as a boolean expression.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// KeywordOperator joins plain keywords: AND or OR (default OR).
	KeywordOperator string `json:"keyword_operator" yaml:"keyword_operator" validate:"oneof=AND OR"`

	// Categories restricts results to taxonomy tags such as cs.LG.
	Categories []string `json:"categories" yaml:"categories"`

	// MaxResults is the page size for one API call (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" validate:"gte=1,lte=2000"`

	// DaysBack is the look-back window in days (default 7).
	DaysBack int `json:"days_back" yaml:"days_back" validate:"gte=1"`
}

// SlackConfig holds the Slack incoming-webhook settings. An empty
// WebhookURL disables the chat sink.
type SlackConfig struct {
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" validate:"omitempty,url"`
	Channel    string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Username   string `json:"username" yaml:"username"`
	IconEmoji  string `json:"icon_emoji" yaml:"icon_emoji"`
}

// Enabled reports whether the chat sink is configured.
func (c SlackConfig) Enabled() bool { return c.WebhookURL != "" }

// NotionConfig holds the Notion integration settings. Both fields are
// required for the document-store sink to be enabled.
type NotionConfig struct {
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	DatabaseID string `json:"database_id,omitempty" yaml:"database_id,omitempty"`

	// SummaryProperty names the column receiving the generated summary
	// (default "Japanese Summary").
	SummaryProperty string `json:"summary_property" yaml:"summary_property"`
}

// Enabled reports whether the document-store sink is configured.
func (c NotionConfig) Enabled() bool { return c.APIKey != "" && c.DatabaseID != "" }

// DatabaseConfig locates the ledger database.
type DatabaseConfig struct {
	// URL is the SQLAlchemy-style location, e.g. "sqlite:///./arxiv_papers.db".
	URL string `json:"url" yaml:"url" validate:"required"`

	// Path is the filesystem path derived from URL.
	Path string `json:"path" yaml:"path" validate:"required"`

	// CleanupDays is the ledger retention in days (default 90).
	CleanupDays int `json:"cleanup_days" yaml:"cleanup_days" validate:"gte=1"`
}

// ScheduleConfig controls the periodic run. A non-empty Time takes
// precedence over IntervalHours.
type ScheduleConfig struct {
	IntervalHours int    `json:"interval_hours" yaml:"interval_hours" validate:"gte=1"`
	Time          string `json:"time,omitempty" yaml:"time,omitempty" validate:"omitempty,clock"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `json:"format" yaml:"format" validate:"oneof=console json"`

	// File, when set, receives a copy of every log line.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// AIConfig holds shared settings for the annotators that call an
// OpenAI-compatible chat completions API.
type AIConfig struct {
	// Model is the chat model identifier (default "gpt-3.5-turbo").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key. Empty disables all annotators.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is the API root (default "https://api.openai.com/v1").
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// SummaryLanguage is the language of generated summaries (default Japanese).
	SummaryLanguage string `json:"summary_language" yaml:"summary_language"`
}

// RelevanceConfig controls the project-relevance annotator.
type RelevanceConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	OverviewFile string `json:"overview_file,omitempty" yaml:"overview_file,omitempty"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g. ":9090"). Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Config is the immutable process configuration, loaded and validated
// once at startup.
type Config struct {
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Arxiv     ArxivConfig     `json:"arxiv" yaml:"arxiv"`
	Slack     SlackConfig     `json:"slack" yaml:"slack"`
	Notion    NotionConfig    `json:"notion" yaml:"notion"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Schedule  ScheduleConfig  `json:"schedule" yaml:"schedule"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	AI        AIConfig        `json:"ai" yaml:"ai"`
	Relevance RelevanceConfig `json:"relevance" yaml:"relevance"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}
