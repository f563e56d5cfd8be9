// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-notifier/internal/config"
	"github.com/pdiddy/arxiv-notifier/internal/secrets"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Config prints the configuration after environment variables, the .env file,
the YAML config file and .secrets/ have been merged. Credentials are masked.

With --yaml the output is a YAML document in the config file format, suitable
as a starting point for arxiv-notifier.yaml.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("yaml", false, "print the configuration as YAML")

	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	asYAML, _ := cmd.Flags().GetBool("yaml")
	masked := maskConfig(cfg)

	if asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(masked); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	}

	fmt.Println(titleStyle.Render("arXiv Notifier Configuration"))
	section("arXiv",
		"Keywords", strings.Join(masked.Arxiv.Keywords, ", "),
		"Keyword operator", masked.Arxiv.KeywordOperator,
		"Categories", strings.Join(masked.Arxiv.Categories, ", "),
		"Max results", fmt.Sprint(masked.Arxiv.MaxResults),
		"Days back", fmt.Sprint(masked.Arxiv.DaysBack),
	)
	section("Slack",
		"Status", enabled(cfg.Slack.Enabled()),
		"Webhook URL", orUnset(masked.Slack.WebhookURL),
		"Channel", orUnset(masked.Slack.Channel),
		"Username", masked.Slack.Username,
	)
	section("Notion",
		"Status", enabled(cfg.Notion.Enabled()),
		"API key", orUnset(masked.Notion.APIKey),
		"Database ID", orUnset(masked.Notion.DatabaseID),
		"Summary column", masked.Notion.SummaryProperty,
	)
	section("Language model",
		"Summaries", enabled(cfg.AI.APIKey != ""),
		"API key", orUnset(masked.AI.APIKey),
		"Model", masked.AI.Model,
		"Base URL", orUnset(masked.AI.BaseURL),
		"Summary language", masked.AI.SummaryLanguage,
		"Project relevance", enabled(config.RelevanceActive(cfg)),
		"Overview file", orUnset(masked.Relevance.OverviewFile),
	)
	schedule := fmt.Sprintf("every %d hours", masked.Schedule.IntervalHours)
	if masked.Schedule.Time != "" {
		schedule = "daily at " + masked.Schedule.Time
	}
	section("Schedule", "Runs", schedule)
	section("Database",
		"URL", masked.Database.URL,
		"Cleanup days", fmt.Sprint(masked.Database.CleanupDays),
	)
	section("Logging",
		"Level", masked.Logging.Level,
		"Format", masked.Logging.Format,
		"File", orUnset(masked.Logging.File),
	)
	section("HTTP",
		"Timeout", masked.HTTP.Timeout.String(),
		"User agent", masked.HTTP.UserAgent,
		"Metrics address", orUnset(masked.Metrics.Addr),
	)
	return nil
}

// section prints a heading followed by label/value pairs.
func section(name string, pairs ...string) {
	fmt.Println()
	fmt.Println(headingStyle.Render(name))
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Printf("  %-18s %s\n", pairs[i]+":", pairs[i+1])
	}
}

// maskConfig returns a copy of c with every credential masked.
func maskConfig(c types.Config) types.Config {
	c.Slack.WebhookURL = secrets.Mask(c.Slack.WebhookURL)
	c.Notion.APIKey = secrets.Mask(c.Notion.APIKey)
	c.AI.APIKey = secrets.Mask(c.AI.APIKey)
	return c
}
