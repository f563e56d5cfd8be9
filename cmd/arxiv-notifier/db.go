// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-notifier/internal/ledger"
	"github.com/pdiddy/arxiv-notifier/internal/search"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const recentListSize = 5

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the processed-papers ledger",
	Long: `Db groups maintenance commands for the SQLite ledger that records every
paper already seen and where it was delivered.`,
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the ledger and recreate an empty schema",
	Long: `Reset removes the ledger database file and creates an empty one. Every
paper in the look-back window will be delivered again on the next cycle.`,
	RunE: runDBReset,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger counts and the most recently processed papers",
	RunE:  runDBStats,
}

var dbCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete ledger rows processed more than N days ago",
	RunE:  runDBCleanup,
}

var dbRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove one paper from the ledger so it is delivered again",
	Long: `Remove deletes the ledger row for ID. A versioned id such as 2301.00001v2
removes only that revision; an id without a version removes every recorded
revision of the paper.`,
	Args: cobra.ExactArgs(1),
	RunE: runDBRemove,
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	dbCleanupCmd.Flags().IntP("days", "d", 0, "retention in days (default: DATABASE_CLEANUP_DAYS)")

	dbCmd.AddCommand(dbResetCmd, dbStatsCmd, dbCleanupCmd, dbRemoveCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBReset(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(fmt.Sprintf("Delete all records in %s?", cfg.Database.Path)) {
		fmt.Println("Aborted")
		return nil
	}
	if err := ledger.Reset(cfg.Database.Path, logger); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("Database reset"))
	return nil
}

func runDBStats(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		stats  types.LedgerStats
		recent []types.LedgerEntry
	)
	err = store.WithSession(cmd.Context(), func(s *ledger.Session) error {
		var err error
		if stats, err = s.Stats(); err != nil {
			return err
		}
		recent, err = s.Recent(recentListSize)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Ledger statistics"))
	fmt.Printf("  %-22s %d\n", "Total papers:", stats.Total)
	fmt.Printf("  %-22s %d\n", "Posted to Slack:", stats.PostedToChat)
	fmt.Printf("  %-22s %d\n", "Added to Notion:", stats.PostedToDocStore)
	fmt.Printf("  %-22s %d\n", "Processed last 7 days:", stats.Recent7Days)

	if len(recent) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println(headingStyle.Render("Recently processed"))
	for _, e := range recent {
		fmt.Printf("  %s  %s  %s\n",
			dimStyle.Render(e.ProcessedAt.Local().Format("2006-01-02 15:04")),
			e.PaperID, trimTitle(e.Title, 60))
	}
	return nil
}

func runDBCleanup(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = cfg.Database.CleanupDays
	}

	store, err := ledger.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var n int
	err = store.WithSession(cmd.Context(), func(s *ledger.Session) error {
		var err error
		n, err = s.PurgeOlderThan(days)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d record(s) older than %d days\n", n, days)
	return nil
}

func runDBRemove(cmd *cobra.Command, args []string) error {
	id := search.ExtractID(args[0])
	base := search.StripVersion(id)

	store, err := ledger.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var n int
	err = store.WithSession(cmd.Context(), func(s *ledger.Session) error {
		if base != id {
			removed, err := s.Remove(id)
			if removed {
				n = 1
			}
			return err
		}
		var err error
		n, err = s.RemoveAllVersions(base)
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("paper %s is not in the ledger", id)
	}
	fmt.Printf("Removed %d record(s) for %s\n", n, id)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func trimTitle(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
