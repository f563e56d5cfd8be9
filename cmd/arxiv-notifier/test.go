// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-notifier/internal/pipeline"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check connectivity to arXiv, the ledger, the sinks and the language model",
	Long: `Test probes every configured service: it runs a one-result arXiv query, reads
ledger statistics, posts a short text to the Slack webhook, reads the Notion
database and annotates a sample paper with each enabled annotator.

Services that are not configured are reported as skipped and do not fail the
command.`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(titleStyle.Render("Connection test"))
	checks := a.proc.CheckConnections(cmd.Context())
	for _, c := range checks {
		fmt.Println(formatCheck(c))
	}

	if !pipeline.AllOK(checks) {
		return errors.New("one or more connection checks failed")
	}
	fmt.Println(okStyle.Render("All configured services are reachable"))
	return nil
}

func formatCheck(c pipeline.Check) string {
	switch c.Status {
	case pipeline.CheckOK:
		line := fmt.Sprintf("  %-12s %s", c.Service, okStyle.Render("OK"))
		if c.Detail != "" {
			line += " " + dimStyle.Render(c.Detail)
		}
		return line
	case pipeline.CheckSkipped:
		return fmt.Sprintf("  %-12s %s", c.Service, dimStyle.Render("skipped (not configured)"))
	default:
		return fmt.Sprintf("  %-12s %s %v", c.Service, failStyle.Render("FAILED"), c.Err)
	}
}
