// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-notifier/internal/schedule"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run notification cycles on the configured schedule",
	Long: `Run starts the scheduler and executes a notification cycle either daily at
SCHEDULE_TIME or every SCHEDULE_INTERVAL_HOURS when no time is set. It runs
until interrupted with Ctrl-C or SIGTERM; a cycle already in progress is
allowed to finish.

When METRICS_ADDR is set, Prometheus metrics are served on /metrics.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolP("immediately", "i", false, "run one cycle before waiting for the first scheduled time")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	immediately, _ := cmd.Flags().GetBool("immediately")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := schedule.New(cfg.Schedule, logger)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info().
		Strs("keywords", cfg.Arxiv.Keywords).
		Strs("categories", cfg.Arxiv.Categories).
		Int("days_back", cfg.Arxiv.DaysBack).
		Bool("slack", cfg.Slack.Enabled()).
		Bool("notion", cfg.Notion.Enabled()).
		Str("schedule", sched.Describe()).
		Msg("starting arxiv-notifier")

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	err = sched.Run(ctx, func(ctx context.Context) {
		a.proc.RunCycle(ctx)
	}, immediately)
	logger.Info().Msg("scheduler stopped")
	return err
}
