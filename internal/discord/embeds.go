package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/ledger"
	"guildbot/pkg/utils"
)

const topActivities = 3

// boardOptions controls how a leaderboard is rendered.
type boardOptions struct {
	Weekly bool
	Limit  int
	// Name resolves a user id; users it rejects are left off the board.
	Name func(userID string) (string, bool)
}

func (o boardOptions) scope() string {
	if o.Weekly {
		return "Weekly"
	}
	return "All-Time"
}

// activityBoard renders ranked standings as an embed.
func activityBoard(standings []ledger.Standing, opts boardOptions) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📊 %s Activity Leaderboard", opts.scope()),
		Color: ColorOrange,
	}
	rank := 0
	for _, s := range standings {
		if opts.Limit > 0 && rank >= opts.Limit {
			break
		}
		name, ok := opts.Name(s.UserID)
		if !ok {
			continue
		}
		rank++

		value := "Top Activities:\n" + activityLines(s.Activities, topActivities)
		if opts.Weekly {
			value = fmt.Sprintf("Daily Avg: %s\n%s", utils.FormatDailyAverage(s.TotalMain), value)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d %s - Total: %s", rank, name, utils.FormatHours(s.TotalMain)),
			Value: utils.TruncateString(value, 1024),
		})
	}
	if rank == 0 {
		embed.Description = "No activity recorded yet."
	}
	return embed
}

// voiceBoard renders ranked voice totals as an embed.
func voiceBoard(standings []ledger.VoiceStanding, opts boardOptions) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎙️ %s Voice Leaderboard", opts.scope()),
		Color: ColorTeal,
	}
	rank := 0
	for _, s := range standings {
		if opts.Limit > 0 && rank >= opts.Limit {
			break
		}
		name, ok := opts.Name(s.UserID)
		if !ok {
			continue
		}
		rank++

		value := "Total Voice Time: " + utils.FormatHours(s.Total)
		if opts.Weekly {
			value += "\nDaily Avg: " + utils.FormatDailyAverage(s.Total)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d %s", rank, name),
			Value: value,
		})
	}
	if rank == 0 {
		embed.Description = "No voice time recorded yet."
	}
	return embed
}

// activityLines lists up to n activities; n <= 0 lists all of them.
// Blacklisted names are set in italics.
func activityLines(acts []ledger.ActivityTotal, n int) string {
	if len(acts) == 0 {
		return "No activity"
	}
	if n > 0 && len(acts) > n {
		acts = acts[:n]
	}
	lines := make([]string, 0, len(acts))
	for _, a := range acts {
		name := a.Name
		if a.Blacklisted {
			name = "*" + name + "*"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (dupl.: %s)", name, utils.FormatHours(a.Main), utils.FormatHours(a.Duplicate)))
	}
	return strings.Join(lines, "\n")
}

// statsEmbed renders one user's all-time figures.
func statsEmbed(name string, s ledger.Standing, voice ledger.VoiceAccount) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Stats for " + name,
		Color: ColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Top Activities", Value: utils.TruncateString(activityLines(s.Activities, 0), 1024)},
			{Name: "Total Voice Time", Value: utils.FormatHours(voice.Total)},
		},
	}
}
