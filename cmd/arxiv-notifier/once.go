// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoNewPapers = errors.New("no new papers found")

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single notification cycle and exit",
	Long: `Once fetches recent papers, records the new ones in the ledger, delivers them
to the configured sinks and purges old ledger rows, then exits.

The exit status is non-zero when the cycle recorded errors. With
--exit-code-on-no-new it is also non-zero when no new papers were found,
which suits cron wrappers that only act on fresh results.`,
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().BoolP("quiet", "q", false, "only log warnings and errors, and skip the summary line")
	onceCmd.Flags().Bool("exit-code-on-no-new", false, "exit non-zero when no new papers are found")

	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	exitOnNoNew, _ := cmd.Flags().GetBool("exit-code-on-no-new")

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.proc.RunCycle(cmd.Context())

	if !quiet {
		fmt.Printf("Fetched %d, new %d, posted to Slack %d, added to Notion %d, purged %d (%.1fs)\n",
			res.Fetched, res.New, res.PostedToChat, res.PostedToDocStore, res.Purged, res.ElapsedSeconds())
		for _, w := range res.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	if res.HasErrors() {
		for _, e := range res.Errors {
			logger.Error().Msg(e)
		}
		return fmt.Errorf("cycle finished with %d error(s)", len(res.Errors))
	}
	if exitOnNoNew && res.New == 0 {
		return errNoNewPapers
	}
	return nil
}
