package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"
	"github.com/rs/zerolog"

	"guildbot/internal/config"
	"guildbot/internal/metrics"
)

const handlerTimeout = 15 * time.Second

// Module is a feature that attaches its handlers and commands to the bot.
type Module interface {
	Register(*Bot)
}

// Bot represents the Discord bot
type Bot struct {
	session  *discordgo.Session
	settings *config.Settings
	logger   zerolog.Logger
	names    *nameCache
	reporter *ErrorReporter

	mu       sync.RWMutex
	ctx      context.Context
	commands map[string]*Command
	order    []string
	messages []func(context.Context, *discordgo.MessageCreate) error
}

// New creates a new Discord bot and registers the given modules.
func New(token string, settings *config.Settings, logger zerolog.Logger, modules ...Module) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	names, err := newNameCache(session.State, nameCacheSize)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		session:  session,
		settings: settings,
		logger:   logger.With().Str("component", "discord").Logger(),
		names:    names,
		ctx:      context.Background(),
		commands: make(map[string]*Command),
	}
	b.reporter = newErrorReporter(b)

	session.AddHandler(handle(b, "ready", b.onReady))
	session.AddHandler(handle(b, "message_create", b.onMessageCreate))

	for _, m := range modules {
		m.Register(b)
	}
	return b, nil
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Settings returns the live guild settings.
func (b *Bot) Settings() *config.Settings { return b.settings }

// Logger returns a child logger for a module.
func (b *Bot) Logger(component string) zerolog.Logger {
	return b.logger.With().Str("component", component).Logger()
}

// Start opens the gateway connection. Handlers run with contexts derived
// from ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info().Msg("Bot is running")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// AddCommand registers a prefix command.
func (b *Bot) AddCommand(cmd *Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := strings.ToLower(cmd.Name)
	if _, ok := b.commands[name]; !ok {
		b.order = append(b.order, name)
	}
	b.commands[name] = cmd
}

// OnMessage registers a listener for user messages that are not commands.
func (b *Bot) OnMessage(fn func(context.Context, *discordgo.MessageCreate) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, fn)
}

func (b *Bot) command(name string) (*Command, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cmd, ok := b.commands[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the registered commands in registration order.
func (b *Bot) Commands() []*Command {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Command, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.commands[name])
	}
	return out
}

func (b *Bot) onReady(ctx context.Context, r *discordgo.Ready) error {
	b.names.Remember(r.User, nil)
	b.logger.Info().
		Str("user", r.User.String()).
		Int("guilds", len(r.Guilds)).
		Msg("Logged in")

	if err := b.session.UpdateGameStatus(0, b.settings.Prefix()+"help"); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to set presence")
	}
	b.SendLog(fmt.Sprintf("%s Bot restarted", emoji.CheckMarkButton.String()))
	b.SendLog(fmt.Sprintf("Logged in as %s (ID: %s)", r.User.String(), r.User.ID))
	return nil
}

func (b *Bot) onMessageCreate(ctx context.Context, m *discordgo.MessageCreate) error {
	if m.Author == nil || m.Author.Bot {
		return nil
	}
	b.names.Remember(m.Author, m.Member)

	name, args, ok := parseCommand(b.settings.Prefix(), m.Content)
	if !ok {
		return b.dispatchMessage(ctx, m)
	}
	cmd, found := b.command(name)
	if !found {
		return nil
	}
	if cmd.Channel != "" && m.ChannelID != b.settings.ID(cmd.Channel) {
		return nil
	}

	call := &Call{Bot: b, Message: m, Args: args}
	if cmd.AdminOnly && !call.IsAdmin() {
		return call.ReplyTemp(fmt.Sprintf("%s You don't have permission to use this command.", emoji.NoEntry.String()), 5*time.Second)
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Name).Inc()
	b.logger.Debug().
		Str("command", cmd.Name).
		Str("user_id", m.Author.ID).
		Str("channel_id", m.ChannelID).
		Msg("Command")

	err := cmd.Run(ctx, call)
	if err != nil {
		b.reporter.Report(Incident{
			Command: cmd.Name,
			UserID:  m.Author.ID,
			User:    m.Author.String(),
			GuildID: m.GuildID,
			Err:     err,
		})
	}
	return nil
}

// dispatchMessage runs every message listener. A failing listener is
// reported on its own and does not stop the others.
func (b *Bot) dispatchMessage(ctx context.Context, m *discordgo.MessageCreate) error {
	b.mu.RLock()
	listeners := append([]func(context.Context, *discordgo.MessageCreate) error(nil), b.messages...)
	b.mu.RUnlock()

	for _, fn := range listeners {
		if err := fn(ctx, m); err != nil {
			b.reporter.Report(Incident{
				Event:   "message_create",
				UserID:  m.Author.ID,
				User:    m.Author.String(),
				GuildID: m.GuildID,
				Err:     err,
			})
		}
	}
	return nil
}

// SendLog posts a notice to the log channel, if one is configured.
func (b *Bot) SendLog(content string) {
	channelID := b.settings.ID(config.KeyLogChannel)
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to send log message")
	}
}

// DisplayName resolves a user id to a name, falling back to a mention.
func (b *Bot) DisplayName(userID string) string {
	if name, ok := b.names.Lookup(userID); ok {
		return name
	}
	return "<@" + userID + ">"
}

// Known reports whether a user can still be resolved to a name.
func (b *Bot) Known(userID string) bool {
	_, ok := b.names.Lookup(userID)
	return ok
}

// isBot reports whether a guild member is a bot account.
func (b *Bot) isBot(guildID string, user *discordgo.User) bool {
	if user == nil {
		return false
	}
	if user.Bot {
		return true
	}
	if guildID == "" {
		return false
	}
	member, err := b.session.State.Member(guildID, user.ID)
	return err == nil && member.User != nil && member.User.Bot
}

// sendTemp sends a message and deletes it after ttl.
func (b *Bot) sendTemp(channelID, content string, ttl time.Duration) error {
	msg, err := b.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return wrapError(err)
	}
	time.AfterFunc(ttl, func() {
		if err := b.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			b.logger.Debug().Err(err).Str("message_id", msg.ID).Msg("Failed to delete temporary message")
		}
	})
	return nil
}

// handle adapts a module handler to a discordgo event handler. Errors and
// panics are sent to the error reporter.
func handle[T any](b *Bot, event string, fn func(context.Context, T) error) func(*discordgo.Session, T) {
	return func(_ *discordgo.Session, ev T) {
		inc := Incident{Event: event}
		defer b.reporter.Recover(inc)

		ctx, cancel := context.WithTimeout(b.context(), handlerTimeout)
		defer cancel()
		if err := fn(ctx, ev); err != nil {
			inc.Err = err
			b.reporter.Report(inc)
		}
	}
}
