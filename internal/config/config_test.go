// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-notifier/internal/secrets"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// newViper loads settings from a temporary YAML file holding body.
func newViper(t *testing.T, body string) *viper.Viper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arxiv-notifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	v, err := New(path)
	require.NoError(t, err)
	return v
}

func load(t *testing.T, body string, secretValues map[string]string) types.Config {
	t.Helper()
	cfg, err := Load(newViper(t, body), secretValues)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := load(t, "", nil)

	assert.Equal(t, []string{"machine learning", "deep learning"}, cfg.Arxiv.Keywords)
	assert.Equal(t, "OR", cfg.Arxiv.KeywordOperator)
	assert.Equal(t, []string{"cs.LG", "cs.AI", "stat.ML"}, cfg.Arxiv.Categories)
	assert.Equal(t, 50, cfg.Arxiv.MaxResults)
	assert.Equal(t, 7, cfg.Arxiv.DaysBack)

	assert.Empty(t, cfg.Slack.WebhookURL)
	assert.False(t, cfg.Slack.Enabled())
	assert.Equal(t, "arXiv Bot", cfg.Slack.Username)
	assert.Equal(t, ":robot_face:", cfg.Slack.IconEmoji)
	assert.False(t, cfg.Notion.Enabled())
	assert.Equal(t, "Japanese Summary", cfg.Notion.SummaryProperty)

	assert.Equal(t, 24, cfg.Schedule.IntervalHours)
	assert.Equal(t, "09:00", cfg.Schedule.Time)

	assert.Equal(t, "sqlite:///./arxiv_papers.db", cfg.Database.URL)
	assert.Equal(t, "./arxiv_papers.db", cfg.Database.Path)
	assert.Equal(t, 90, cfg.Database.CleanupDays)

	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	assert.Equal(t, "Japanese", cfg.AI.SummaryLanguage)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "logs/arxiv_notifier.log", cfg.Logging.File)
	assert.False(t, cfg.Relevance.Enabled)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("ARXIV_KEYWORDS", "nlp, computer vision")
	t.Setenv("ARXIV_MAX_RESULTS", "100")
	t.Setenv("ARXIV_KEYWORD_OPERATOR", "and")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/test")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("API_TIMEOUT", "45")

	cfg := load(t, "", nil)

	assert.Equal(t, []string{"nlp", "computer vision"}, cfg.Arxiv.Keywords)
	assert.Equal(t, 100, cfg.Arxiv.MaxResults)
	assert.Equal(t, "AND", cfg.Arxiv.KeywordOperator)
	assert.Equal(t, "https://hooks.slack.com/test", cfg.Slack.WebhookURL)
	assert.True(t, cfg.Slack.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
}

func TestLoad_EmptyScheduleTimeSelectsInterval(t *testing.T) {
	t.Setenv("SCHEDULE_TIME", "")
	t.Setenv("SCHEDULE_INTERVAL_HOURS", "6")

	cfg := load(t, "", nil)
	assert.Empty(t, cfg.Schedule.Time)
	assert.Equal(t, 6, cfg.Schedule.IntervalHours)
}

func TestLoad_YAMLFile(t *testing.T) {
	cfg := load(t, `
arxiv:
  keywords:
    - graph neural networks
    - " transformers "
  categories: cs.CL
http:
  timeout: 1m30s
notion:
  api_key: secret_yaml
  database_id: db123
`, nil)

	assert.Equal(t, []string{"graph neural networks", "transformers"}, cfg.Arxiv.Keywords)
	assert.Equal(t, []string{"cs.CL"}, cfg.Arxiv.Categories)
	assert.Equal(t, 90*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.Notion.Enabled())
}

func TestLoad_EnvironmentBeatsYAML(t *testing.T) {
	t.Setenv("ARXIV_DAYS_BACK", "3")
	cfg := load(t, "arxiv:\n  days_back: 14\n", nil)
	assert.Equal(t, 3, cfg.Arxiv.DaysBack)
}

func TestLoad_SecretsFillEmptyCredentials(t *testing.T) {
	t.Setenv("NOTION_API_KEY", "secret_env")
	s := map[string]string{
		secrets.SlackWebhookURL: "https://hooks.slack.com/from-file",
		secrets.NotionAPIKey:    "secret_file",
		secrets.OpenAIAPIKey:    "sk-file",
	}

	cfg := load(t, "", s)
	assert.Equal(t, "https://hooks.slack.com/from-file", cfg.Slack.WebhookURL)
	assert.Equal(t, "secret_env", cfg.Notion.APIKey, "environment wins over secrets")
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
}

func TestLoad_SecretsFillEmptyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := load(t, "", map[string]string{secrets.OpenAIAPIKey: "sk-file"})
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"operator", map[string]string{"ARXIV_KEYWORD_OPERATOR": "XOR"}, "arxiv.keyword_operator"},
		{"schedule hour", map[string]string{"SCHEDULE_TIME": "25:00"}, "schedule.time"},
		{"schedule minute", map[string]string{"SCHEDULE_TIME": "12:60"}, "schedule.time"},
		{"schedule format", map[string]string{"SCHEDULE_TIME": "invalid"}, "schedule.time"},
		{"log level", map[string]string{"LOG_LEVEL": "INVALID"}, "logging.level"},
		{"max results", map[string]string{"ARXIV_MAX_RESULTS": "0"}, "arxiv.max_results"},
		{"webhook", map[string]string{"SLACK_WEBHOOK_URL": "not a url"}, "slack.webhook_url"},
		{"cleanup", map[string]string{"DATABASE_CLEANUP_DAYS": "0"}, "database.cleanup_days"},
		{"timeout", map[string]string{"API_TIMEOUT": "soon"}, "API_TIMEOUT"},
		{"database scheme", map[string]string{"DATABASE_URL": "postgres://localhost/db"}, "unsupported database URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(newViper(t, ""), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabasePath(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"sqlite:///./arxiv_papers.db", "./arxiv_papers.db", false},
		{"sqlite:////var/lib/arxiv.db", "/var/lib/arxiv.db", false},
		{"data/ledger.db", "data/ledger.db", false},
		{"mysql://host/db", "", true},
	}
	for _, tt := range tests {
		got, err := DatabasePath(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("DatabasePath(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DatabasePath(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRelevanceActive(t *testing.T) {
	overview := filepath.Join(t.TempDir(), "overview.md")
	require.NoError(t, os.WriteFile(overview, []byte("project"), 0o644))

	base := types.Config{
		AI:        types.AIConfig{APIKey: "sk", Model: "gpt-3.5-turbo"},
		Relevance: types.RelevanceConfig{Enabled: true, OverviewFile: overview},
	}
	assert.True(t, RelevanceActive(base))

	noFlag := base
	noFlag.Relevance.Enabled = false
	assert.False(t, RelevanceActive(noFlag))

	noKey := base
	noKey.AI.APIKey = ""
	assert.False(t, RelevanceActive(noKey))

	missing := base
	missing.Relevance.OverviewFile = overview + ".missing"
	assert.False(t, RelevanceActive(missing))
}

func TestWriteSampleEnv_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSampleEnv(&buf))

	got, err := godotenv.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(Settings))
	for _, s := range Settings {
		assert.Equal(t, s.Default, got[s.Env], s.Env)
	}
}

func TestGenerateEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.example")
	require.NoError(t, GenerateEnvFile(path))

	got, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///./arxiv_papers.db", got["DATABASE_URL"])
	assert.Equal(t, ":robot_face:", got["SLACK_ICON_EMOJI"])
	assert.Contains(t, got, "SLACK_WEBHOOK_URL")
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringList("a, ,b,"))
	assert.Equal(t, []string{"x", "y"}, stringList([]any{"x", " y "}))
	assert.Equal(t, []string{"z"}, stringList([]string{"z"}))
	assert.Empty(t, stringList(nil))
}
