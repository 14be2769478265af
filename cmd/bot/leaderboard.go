package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildbot/internal/ledger"
	"guildbot/internal/tracker"
	"guildbot/pkg/utils"
)

var (
	leaderboardWeekly bool
	leaderboardTop    int
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the stored leaderboards",
	Long: `Print the activity and voice leaderboards from the stored ledger without
connecting to Discord. Totals are as of the last save.`,
	RunE: runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().BoolVar(&leaderboardWeekly, "weekly", false, "Show the current period instead of all-time totals")
	leaderboardCmd.Flags().IntVar(&leaderboardTop, "top", 10, "Number of users to show (0 for all)")
	rootCmd.AddCommand(leaderboardCmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	settings, err := loadSettings(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	allTime, period, err := tracker.LoadDocuments(context.Background(), store, logger)
	if err != nil {
		return err
	}
	doc, scope := allTime, "All-Time"
	if leaderboardWeekly {
		doc, scope = period, "Weekly"
	}

	blacklist := ledger.NewBlacklist(settings.Blacklist())
	activities := ledger.RankActivities(doc, leaderboardTop, nil, blacklist)
	voice := ledger.RankVoice(doc, leaderboardTop, nil)

	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	out := os.Stdout

	header.Fprintf(out, "📊 %s Activity Leaderboard\n", scope)
	if len(activities) == 0 {
		dim.Fprintln(out, "   no activity recorded")
	}
	for i, s := range activities {
		fmt.Fprintln(out, utils.FormatLeaderboardEntry(i+1, s.UserID, utils.FormatHours(s.TotalMain)))
		for j, a := range s.Activities {
			if j == 3 {
				break
			}
			line := fmt.Sprintf("     %s %s (dupl. %s)", a.Name, utils.FormatHours(a.Main), utils.FormatHours(a.Duplicate))
			if a.Blacklisted {
				color.New(color.FgYellow).Fprintln(out, line)
				continue
			}
			dim.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out)
	header.Fprintf(out, "🎙️ %s Voice Leaderboard\n", scope)
	if len(voice) == 0 {
		dim.Fprintln(out, "   no voice time recorded")
	}
	for i, v := range voice {
		fmt.Fprintln(out, utils.FormatLeaderboardEntry(i+1, v.UserID, utils.FormatHours(v.Total)))
	}
	return nil
}
