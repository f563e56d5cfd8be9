// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the arxiv-notifier CLI.
// It fetches recent arXiv papers, records them in a local SQLite ledger,
// and posts new ones to Slack and Notion, either once or on a schedule.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-notifier/internal/config"
	"github.com/pdiddy/arxiv-notifier/internal/observability"
	"github.com/pdiddy/arxiv-notifier/internal/secrets"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

var (
	// cfg is the validated configuration loaded before every command.
	cfg types.Config

	logger   = zerolog.Nop()
	closeLog = func() error { return nil }
)

// rootCmd is the base command for the arxiv-notifier CLI.
var rootCmd = &cobra.Command{
	Use:   "arxiv-notifier",
	Short: "Collect new arXiv papers and notify Slack and Notion",
	Long: `arxiv-notifier searches arXiv for recent papers matching configured keywords
and categories, skips papers it has already processed, and delivers the new
ones to a Slack incoming webhook and a Notion database. Summaries and
project-relevance notes are added when an OpenAI-compatible API key is set.

Configuration comes from environment variables (a .env file is loaded when
present), an optional YAML file and credentials stored in .secrets/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return loadConfig(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./arxiv-notifier.yaml or ~/.config/arxiv-notifier/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded into the environment when present")
}

func loadConfig(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	bootstrap := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	s, err := secrets.Load(secrets.DefaultDir, bootstrap)
	if err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	c, err := config.Load(v, s)
	if err != nil {
		return err
	}
	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil && quiet {
		c.Logging.Level = "warn"
	}
	cfg = c

	logger, closeLog, err = observability.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		logger.Info().Strs("secrets", secrets.Names(s)).Msg("loaded secrets")
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info().Str("file", used).Msg("using config file")
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
