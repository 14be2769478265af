package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guildbot/internal/config"
	"guildbot/internal/metrics"
)

const (
	ColorRed        int = 15548997
	ColorGreen      int = 5763719
	ColorDarkOrange int = 11027200
	ColorOrange     int = 15105570
	ColorTeal       int = 1752220
	ColorBlue       int = 3447003
)

// maxTraceLen is how much of a stack trace fits in the error embed.
const maxTraceLen = 2000

func wrapError(err error) *errors.Error {
	return errors.Wrap(err, 1)
}

func errorToStr(err error) string {
	errWithStack, ok := err.(*errors.Error)
	if ok {
		return errWithStack.ErrorStack()
	}
	return err.Error()
}

// Incident is one error to report, with where it happened.
type Incident struct {
	ID      string
	Command string
	Event   string
	UserID  string
	User    string
	GuildID string
	Err     error
}

// ErrorReporter logs handler failures and forwards them to the error
// channel and the error user.
type ErrorReporter struct {
	bot    *Bot
	logger zerolog.Logger
}

func newErrorReporter(b *Bot) *ErrorReporter {
	return &ErrorReporter{bot: b, logger: b.Logger("errors")}
}

// Recover reports a panic in the calling handler. It must be deferred.
func (r *ErrorReporter) Recover(inc Incident) {
	if p := recover(); p != nil {
		inc.Err = errors.Wrap(p, 2)
		r.Report(inc)
	}
}

// Report logs the incident and sends it to Discord.
func (r *ErrorReporter) Report(inc Incident) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	trace := errorToStr(inc.Err)
	if trace == "" {
		trace = "No traceback available."
	}

	source := "event"
	if inc.Command != "" {
		source = "command"
	}
	metrics.ErrorsReported.WithLabelValues(source).Inc()

	r.logger.Error().
		Str("incident", inc.ID).
		Str("command", inc.Command).
		Str("event", inc.Event).
		Str("user_id", inc.UserID).
		Str("guild_id", inc.GuildID).
		Msg(trace)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	r.send(ctx, inc, trace)
}

func (r *ErrorReporter) send(ctx context.Context, inc Incident, trace string) {
	session := r.bot.session
	settings := r.bot.settings
	embed := errorEmbed(inc, trace)
	attach := len(trace) > maxTraceLen

	message := func() *discordgo.MessageSend {
		m := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
		if attach {
			m.Files = []*discordgo.File{{
				Name:        "traceback.txt",
				ContentType: "text/plain",
				Reader:      strings.NewReader(trace),
			}}
		}
		return m
	}

	if channelID := settings.ID(config.KeyErrorChannel); channelID != "" {
		if _, err := session.ChannelMessageSendComplex(channelID, message(), discordgo.WithContext(ctx)); err != nil {
			r.logger.Warn().Err(err).Str("incident", inc.ID).Msg("Failed to send error to channel")
		}
	} else {
		r.logger.Warn().Msg("Error channel not configured")
	}

	userID := settings.ID(config.KeyErrorUser)
	if userID == "" {
		r.logger.Warn().Msg("Error user not configured")
		return
	}
	dm, err := session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		r.logger.Warn().Err(err).Str("incident", inc.ID).Msg("Could not DM the error user")
		return
	}
	if _, err := session.ChannelMessageSendComplex(dm.ID, message(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Warn().Err(err).Str("incident", inc.ID).Msg("Failed to send error to user")
	}
}

// errorEmbed builds the report embed. The trace is cut to fit; callers
// attach the full text when it is longer.
func errorEmbed(inc Incident, trace string) *discordgo.MessageEmbed {
	if len(trace) > maxTraceLen {
		trace = trace[:maxTraceLen]
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Bot Error", emoji.CrossMark.String()),
		Description: "```go\n" + trace + "\n```",
		Color:       ColorRed,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	footer := "Error in event loop"
	switch {
	case inc.Command != "":
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Command", Value: inc.Command})
		guild := inc.GuildID
		if guild == "" {
			guild = "DMs"
		}
		footer = fmt.Sprintf("User: %s | Guild: %s", inc.User, guild)
	case inc.Event != "":
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Event", Value: inc.Event})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Incident", Value: inc.ID})
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}
