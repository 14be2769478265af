package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildbot/internal/backup"
	"guildbot/internal/tracker"
	"guildbot/pkg/utils"
)

var auditSkew time.Duration

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the period ledger against the backups",
	Long: `Derive the current period from the all-time ledger minus the sum of all
period backups, and compare it with the stored period ledger. A mismatch means
a rollover or a backup went missing.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().DurationVar(&auditSkew, "skew", 2*time.Minute, "Tolerated difference per figure")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	allTime, period, err := tracker.LoadDocuments(ctx, store, logger)
	if err != nil {
		return err
	}
	report, err := backup.Audit(ctx, store, allTime, period, int64(auditSkew.Seconds()), time.Now())
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "Backups: %d (baseline rebuilt: %v)\n", report.Backups, report.BaselineRebuilt)
	for _, key := range report.Skipped {
		color.New(color.FgYellow).Fprintf(out, "⚠️  Skipped unreadable backup %s\n", key)
	}

	red := color.New(color.FgRed)
	for _, d := range report.Drifts {
		what := d.Name
		if what == "" {
			what = "voice"
		}
		line := fmt.Sprintf("   %s %s: derived %s, live %s", d.UserID, what, utils.FormatDuration(d.Derived), utils.FormatDuration(d.Live))
		if d.Tolerate {
			fmt.Fprintln(out, line)
			continue
		}
		red.Fprintln(out, line)
	}

	if !report.Clean() {
		red.Fprintln(out, "❌ Period ledger does not match the backups")
		return fmt.Errorf("audit found %d differences", len(report.Drifts))
	}
	color.New(color.FgGreen).Fprintln(out, "✅ Period ledger matches the backups")
	return nil
}
