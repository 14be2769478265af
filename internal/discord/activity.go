package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"
	"github.com/rs/zerolog"

	"guildbot/internal/config"
	"guildbot/internal/ledger"
	"guildbot/internal/tracker"
)

// ActivityModule feeds presence and voice events into the tracker and
// serves the leaderboard commands.
type ActivityModule struct {
	bot     *Bot
	tracker *tracker.Tracker
	grace   time.Duration
	logger  zerolog.Logger

	mu         sync.Mutex
	pending    map[string]struct{}
	generation int
	restored   bool
}

// NewActivityModule creates the module. grace bounds how long the startup
// snapshot waits for guilds to arrive after Ready.
func NewActivityModule(t *tracker.Tracker, grace time.Duration) *ActivityModule {
	return &ActivityModule{tracker: t, grace: grace}
}

func (m *ActivityModule) Register(bot *Bot) {
	m.bot = bot
	m.logger = bot.Logger("activity")
	m.tracker.SetReporter(m)

	s := bot.Session()
	s.AddHandler(handle(bot, "ready", m.onReady))
	s.AddHandler(handle(bot, "guild_create", m.onGuildCreate))
	s.AddHandler(handle(bot, "presence_update", m.onPresenceUpdate))
	s.AddHandler(handle(bot, "voice_state_update", m.onVoiceStateUpdate))

	bot.AddCommand(&Command{
		Name: "leaderboard",
		Help: "Shows the all-time activity and voice leaderboards",
		Run:  m.leaderboard,
	})
	bot.AddCommand(&Command{
		Name:      "weekly",
		Help:      "Shows the leaderboards of the current period",
		AdminOnly: true,
		Run:       m.weekly,
	})
	bot.AddCommand(&Command{
		Name:      "rollover",
		Help:      "Closes the current period and posts its leaderboard",
		AdminOnly: true,
		Run:       m.rollover,
	})
	bot.AddCommand(&Command{
		Name:  "stats",
		Usage: "[@user]",
		Help:  "Shows all-time stats for you or another member",
		Run:   m.stats,
	})
}

func (m *ActivityModule) onReady(ctx context.Context, r *discordgo.Ready) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.restored = false
	m.pending = make(map[string]struct{}, len(r.Guilds))
	for _, g := range r.Guilds {
		m.pending[g.ID] = struct{}{}
	}
	empty := len(m.pending) == 0
	m.mu.Unlock()

	if empty {
		m.restore(gen, "no guilds")
		return nil
	}
	time.AfterFunc(m.grace, func() { m.restore(gen, "grace timeout") })
	return nil
}

func (m *ActivityModule) onGuildCreate(ctx context.Context, g *discordgo.GuildCreate) error {
	m.mu.Lock()
	delete(m.pending, g.ID)
	done := len(m.pending) == 0
	gen := m.generation
	m.mu.Unlock()

	if done {
		m.restore(gen, "all guilds ready")
	}
	return nil
}

// restore seeds the tracker with what the gateway state shows right now.
// It runs once per Ready.
func (m *ActivityModule) restore(gen int, reason string) {
	m.mu.Lock()
	if gen != m.generation || m.restored {
		m.mu.Unlock()
		return
	}
	m.restored = true
	missing := len(m.pending)
	m.mu.Unlock()

	state := m.bot.Session().State
	state.RLock()
	snap := buildSnapshot(state.Guilds)
	state.RUnlock()

	activities, voice := m.tracker.Restore(snap)
	m.logger.Info().
		Str("reason", reason).
		Int("missing_guilds", missing).
		Msg("Startup snapshot taken")

	if activities == 0 && voice == 0 {
		m.bot.SendLog(fmt.Sprintf("%s Startup complete, no ongoing activities detected.", emoji.CheckMarkButton.String()))
		return
	}
	m.bot.SendLog(fmt.Sprintf("%s Startup complete, resumed %d activities and %d voice sessions.",
		emoji.CheckMarkButton.String(), activities, voice))
}

func (m *ActivityModule) onPresenceUpdate(ctx context.Context, p *discordgo.PresenceUpdate) error {
	if p.User == nil || m.bot.isBot(p.GuildID, p.User) {
		return nil
	}
	if p.User.Username != "" {
		m.bot.names.Remember(p.User, nil)
	}
	m.tracker.OnActivityChanged(p.User.ID, convertActivities(p.Activities))
	return nil
}

func (m *ActivityModule) onVoiceStateUpdate(ctx context.Context, v *discordgo.VoiceStateUpdate) error {
	if v.VoiceState == nil {
		return nil
	}
	var user *discordgo.User
	if v.Member != nil {
		user = v.Member.User
		m.bot.names.Remember(user, v.Member)
	}
	if m.bot.isBot(v.GuildID, user) {
		return nil
	}
	m.tracker.OnVoiceStateChanged(v.UserID, v.ChannelID)
	return nil
}

func (m *ActivityModule) options(weekly bool) boardOptions {
	return boardOptions{
		Weekly: weekly,
		Limit:  m.bot.Settings().LeaderboardLimit(),
		Name:   m.bot.names.Lookup,
	}
}

func (m *ActivityModule) embeds(sel ledger.Selector) []*discordgo.MessageEmbed {
	opts := m.options(sel == ledger.Period)
	acts := m.tracker.Leaderboard(sel, 0, m.bot.Known)
	voice := m.tracker.VoiceLeaderboard(sel, 0, m.bot.Known)
	return []*discordgo.MessageEmbed{activityBoard(acts, opts), voiceBoard(voice, opts)}
}

func (m *ActivityModule) leaderboard(ctx context.Context, c *Call) error {
	return c.ReplyEmbeds(m.embeds(ledger.AllTime)...)
}

func (m *ActivityModule) weekly(ctx context.Context, c *Call) error {
	return c.ReplyEmbeds(m.embeds(ledger.Period)...)
}

func (m *ActivityModule) rollover(ctx context.Context, c *Call) error {
	report, err := m.tracker.Rollover(ctx, true)
	if err != nil {
		return err
	}
	m.logger.Info().
		Str("user_id", c.Message.Author.ID).
		Str("backup", report.BackupKey).
		Msg("Manual rollover")
	return c.Reply(fmt.Sprintf("%s Period closed, backup %s", emoji.CheckMarkButton.String(), report.BackupKey))
}

func (m *ActivityModule) stats(ctx context.Context, c *Call) error {
	userID := c.TargetUser(0)
	name := m.bot.DisplayName(userID)

	standing, voice, ok := m.tracker.Stats(userID)
	if !ok {
		return c.ReplyTemp(fmt.Sprintf("No stats found for %s.", name), time.Hour)
	}
	_, err := c.Bot.Session().ChannelMessageSendEmbed(c.Message.ChannelID, statsEmbed(name, standing, voice))
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// PublishReport posts a closed period's leaderboards to the activity channel.
func (m *ActivityModule) PublishReport(ctx context.Context, r tracker.Report) error {
	channelID := m.bot.Settings().ID(config.KeyActivityChannel)
	if channelID == "" {
		m.logger.Warn().Msg("Activity channel not configured, report not posted")
		return nil
	}

	opts := m.options(true)
	embeds := []*discordgo.MessageEmbed{activityBoard(r.Activities, opts), voiceBoard(r.Voice, opts)}
	footer := &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%s - %s", r.PeriodStart.Format("02.01.2006 15:04"), r.PeriodEnd.Format("02.01.2006 15:04")),
	}
	for _, e := range embeds {
		e.Footer = footer
	}

	if _, err := m.bot.Session().ChannelMessageSendEmbeds(channelID, embeds, discordgo.WithContext(ctx)); err != nil {
		return wrapError(err)
	}
	m.bot.SendLog(fmt.Sprintf("%s Weekly leaderboard posted (%s)", emoji.Trophy.String(), r.Trigger))
	return nil
}

// convertActivities keeps the presence activities that accrue time.
func convertActivities(acts []*discordgo.Activity) []ledger.Activity {
	out := make([]ledger.Activity, 0, len(acts))
	for _, a := range acts {
		if a == nil {
			continue
		}
		act := ledger.Activity{Name: a.Name, Kind: activityKind(a.Type)}
		if act.Trackable() {
			out = append(out, act)
		}
	}
	return out
}

func activityKind(t discordgo.ActivityType) ledger.Kind {
	switch t {
	case discordgo.ActivityTypeStreaming:
		return ledger.KindStreaming
	case discordgo.ActivityTypeListening:
		return ledger.KindListening
	case discordgo.ActivityTypeWatching:
		return ledger.KindWatching
	case discordgo.ActivityTypeCustom:
		return ledger.KindCustom
	case discordgo.ActivityTypeCompeting:
		return ledger.KindCompeting
	default:
		return ledger.KindPlaying
	}
}

// buildSnapshot collects the running activities and voice channels of every
// non-bot member in the cached guilds. The caller holds the state lock.
func buildSnapshot(guilds []*discordgo.Guild) ledger.Snapshot {
	snap := ledger.Snapshot{
		Activities: make(map[string][]ledger.Activity),
		Voice:      make(map[string]string),
	}
	for _, g := range guilds {
		bots := make(map[string]bool)
		for _, member := range g.Members {
			if member.User != nil && member.User.Bot {
				bots[member.User.ID] = true
			}
		}
		for _, p := range g.Presences {
			if p.User == nil || p.User.Bot || bots[p.User.ID] {
				continue
			}
			if acts := convertActivities(p.Activities); len(acts) > 0 {
				snap.Activities[p.User.ID] = append(snap.Activities[p.User.ID], acts...)
			}
		}
		for _, vs := range g.VoiceStates {
			if vs.ChannelID == "" || bots[vs.UserID] {
				continue
			}
			if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
				continue
			}
			snap.Voice[vs.UserID] = vs.ChannelID
		}
	}
	return snap
}
