package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildbot/internal/database"
	"guildbot/pkg/utils"
)

var (
	historyLimit int
	historyUser  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived periods from the database",
	Long: `Show the most recent archived periods, or with --user the archived running
totals of one member. Requires database_dsn.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of rows to show")
	historyCmd.Flags().StringVar(&historyUser, "user", "", "Discord user id to show totals for")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn is not configured")
	}
	db, err := database.New(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := database.NewRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	header := color.New(color.FgCyan, color.Bold)
	out := os.Stdout

	if historyUser != "" {
		voice, err := repo.GetVoiceHours(ctx, historyUser)
		if err != nil {
			return err
		}
		top, err := repo.GetTopActivities(ctx, historyUser, historyLimit)
		if err != nil {
			return err
		}
		header.Fprintf(out, "Archived totals for %s\n", historyUser)
		fmt.Fprintf(out, "Voice: %s\n", utils.FormatHours(voice.TotalSeconds))
		for i, a := range top {
			fmt.Fprintln(out, utils.FormatLeaderboardEntry(i+1, a.ActivityName, utils.FormatHours(a.TotalSeconds)))
		}
		return nil
	}

	periods, err := repo.RecentPeriods(ctx, historyLimit)
	if err != nil {
		return err
	}
	header.Fprintln(out, "Archived periods")
	if len(periods) == 0 {
		fmt.Fprintln(out, "   none yet")
	}
	for _, p := range periods {
		fmt.Fprintf(out, "%s - %s  %-9s users=%-3d total=%s  %s\n",
			p.PeriodStart.Format("02.01.2006"),
			p.PeriodEnd.Format("02.01.2006"),
			p.Trigger,
			p.Users,
			utils.FormatHours(p.MainSeconds),
			p.BackupKey)
	}
	return nil
}
