// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the process configuration from environment
// variables, an optional YAML file and the secrets directory, and
// validates it once into an immutable types.Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-notifier/internal/secrets"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// Name is the base name of the YAML config file searched for by New.
const Name = "arxiv-notifier"

const sqlitePrefix = "sqlite:///"

// Setting describes one configuration key: its path in the YAML file,
// the environment variable that overrides it and its default as written
// in a sample env file.
type Setting struct {
	Key     string
	Env     string
	Default string
	Secret  string
	Section string
}

// Settings lists every key in sample env order.
var Settings = []Setting{
	{Key: "arxiv.keywords", Env: "ARXIV_KEYWORDS", Default: "machine learning,deep learning", Section: "arXiv Settings"},
	{Key: "arxiv.keyword_operator", Env: "ARXIV_KEYWORD_OPERATOR", Default: "OR", Section: "arXiv Settings"},
	{Key: "arxiv.categories", Env: "ARXIV_CATEGORIES", Default: "cs.LG,cs.AI,stat.ML", Section: "arXiv Settings"},
	{Key: "arxiv.max_results", Env: "ARXIV_MAX_RESULTS", Default: "50", Section: "arXiv Settings"},
	{Key: "arxiv.days_back", Env: "ARXIV_DAYS_BACK", Default: "7", Section: "arXiv Settings"},

	{Key: "slack.webhook_url", Env: "SLACK_WEBHOOK_URL", Secret: secrets.SlackWebhookURL, Section: "Slack Settings"},
	{Key: "slack.channel", Env: "SLACK_CHANNEL", Section: "Slack Settings"},
	{Key: "slack.username", Env: "SLACK_USERNAME", Default: "arXiv Bot", Section: "Slack Settings"},
	{Key: "slack.icon_emoji", Env: "SLACK_ICON_EMOJI", Default: ":robot_face:", Section: "Slack Settings"},

	{Key: "notion.api_key", Env: "NOTION_API_KEY", Secret: secrets.NotionAPIKey, Section: "Notion Settings"},
	{Key: "notion.database_id", Env: "NOTION_DATABASE_ID", Section: "Notion Settings"},
	{Key: "notion.summary_property", Env: "NOTION_SUMMARY_PROPERTY", Default: "Japanese Summary", Section: "Notion Settings"},

	{Key: "ai.api_key", Env: "OPENAI_API_KEY", Secret: secrets.OpenAIAPIKey, Section: "OpenAI Settings"},
	{Key: "ai.model", Env: "OPENAI_MODEL", Default: "gpt-3.5-turbo", Section: "OpenAI Settings"},
	{Key: "ai.base_url", Env: "OPENAI_BASE_URL", Section: "OpenAI Settings"},
	{Key: "ai.summary_language", Env: "SUMMARY_LANGUAGE", Default: "Japanese", Section: "OpenAI Settings"},

	{Key: "relevance.enabled", Env: "ENABLE_PROJECT_RELEVANCE", Default: "false", Section: "Project Relevance Settings"},
	{Key: "relevance.overview_file", Env: "PROJECT_OVERVIEW_FILE", Section: "Project Relevance Settings"},

	{Key: "schedule.interval_hours", Env: "SCHEDULE_INTERVAL_HOURS", Default: "24", Section: "Schedule Settings"},
	{Key: "schedule.time", Env: "SCHEDULE_TIME", Default: "09:00", Section: "Schedule Settings"},

	{Key: "database.url", Env: "DATABASE_URL", Default: "sqlite:///./arxiv_papers.db", Section: "Database Settings"},
	{Key: "database.cleanup_days", Env: "DATABASE_CLEANUP_DAYS", Default: "90", Section: "Database Settings"},

	{Key: "logging.level", Env: "LOG_LEVEL", Default: "info", Section: "Log Settings"},
	{Key: "logging.format", Env: "LOG_FORMAT", Default: "console", Section: "Log Settings"},
	{Key: "logging.file", Env: "LOG_FILE", Default: "logs/arxiv_notifier.log", Section: "Log Settings"},

	{Key: "http.timeout", Env: "API_TIMEOUT", Default: "30", Section: "API Settings"},
	{Key: "http.user_agent", Env: "API_USER_AGENT", Default: "arxiv-notifier/0.1", Section: "API Settings"},

	{Key: "metrics.addr", Env: "METRICS_ADDR", Section: "Metrics Settings"},
}

// New returns a viper instance with every setting bound to its
// environment variable and default. An environment variable set to the
// empty string counts as set, so SCHEDULE_TIME= selects the interval
// schedule. When file is empty New searches ./arxiv-notifier.yaml and
// ~/.config/arxiv-notifier/config.yaml; a missing file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for _, s := range Settings {
		v.SetDefault(s.Key, s.Default)
		if err := v.BindEnv(s.Key, s.Env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", s.Env, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", Name))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

// Load converts v into a validated Config. Values from secretValues
// (keyed by secrets file name) fill credentials left empty by every
// other source.
func Load(v *viper.Viper, secretValues map[string]string) (types.Config, error) {
	timeout, err := parseTimeout(v.GetString("http.timeout"))
	if err != nil {
		return types.Config{}, err
	}
	dbURL := v.GetString("database.url")
	dbPath, err := DatabasePath(dbURL)
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Config{
		HTTP: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: v.GetString("http.user_agent"),
		},
		Arxiv: types.ArxivConfig{
			Keywords:        stringList(v.Get("arxiv.keywords")),
			KeywordOperator: strings.ToUpper(strings.TrimSpace(v.GetString("arxiv.keyword_operator"))),
			Categories:      stringList(v.Get("arxiv.categories")),
			MaxResults:      v.GetInt("arxiv.max_results"),
			DaysBack:        v.GetInt("arxiv.days_back"),
		},
		Slack: types.SlackConfig{
			WebhookURL: v.GetString("slack.webhook_url"),
			Channel:    v.GetString("slack.channel"),
			Username:   v.GetString("slack.username"),
			IconEmoji:  v.GetString("slack.icon_emoji"),
		},
		Notion: types.NotionConfig{
			APIKey:          v.GetString("notion.api_key"),
			DatabaseID:      v.GetString("notion.database_id"),
			SummaryProperty: v.GetString("notion.summary_property"),
		},
		Database: types.DatabaseConfig{
			URL:         dbURL,
			Path:        dbPath,
			CleanupDays: v.GetInt("database.cleanup_days"),
		},
		Schedule: types.ScheduleConfig{
			IntervalHours: v.GetInt("schedule.interval_hours"),
			Time:          strings.TrimSpace(v.GetString("schedule.time")),
		},
		Logging: types.LoggingConfig{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
			File:   v.GetString("logging.file"),
		},
		AI: types.AIConfig{
			Model:           v.GetString("ai.model"),
			APIKey:          v.GetString("ai.api_key"),
			BaseURL:         v.GetString("ai.base_url"),
			SummaryLanguage: v.GetString("ai.summary_language"),
		},
		Relevance: types.RelevanceConfig{
			Enabled:      v.GetBool("relevance.enabled"),
			OverviewFile: v.GetString("relevance.overview_file"),
		},
		Metrics: types.MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = secretValues[name]
		}
	}
	fill(&cfg.Slack.WebhookURL, secrets.SlackWebhookURL)
	fill(&cfg.Notion.APIKey, secrets.NotionAPIKey)
	fill(&cfg.AI.APIKey, secrets.OpenAIAPIKey)

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// DatabasePath extracts the file path from a sqlite:/// URL. A value
// without a scheme is taken as a path.
func DatabasePath(url string) (string, error) {
	switch {
	case strings.HasPrefix(url, sqlitePrefix):
		return strings.TrimPrefix(url, sqlitePrefix), nil
	case strings.Contains(url, "://"):
		return "", fmt.Errorf("unsupported database URL %q: only sqlite:/// is supported", url)
	default:
		return url, nil
	}
}

// RelevanceActive reports whether the relevance annotator can run: the
// feature flag, an API key, a model and an existing overview file.
func RelevanceActive(cfg types.Config) bool {
	if !cfg.Relevance.Enabled || cfg.AI.APIKey == "" || cfg.AI.Model == "" || cfg.Relevance.OverviewFile == "" {
		return false
	}
	info, err := os.Stat(cfg.Relevance.OverviewFile)
	return err == nil && !info.IsDir()
}

// parseTimeout accepts whole seconds ("30") or a Go duration ("1m30s").
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid API_TIMEOUT %q: %w", s, err)
	}
	return d, nil
}

// stringList accepts a comma-separated string or a YAML list.
func stringList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, it := range v {
			items = append(items, fmt.Sprint(it))
		}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
