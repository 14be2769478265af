package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/enescakir/emoji"
	"github.com/rs/zerolog"

	"guildbot/internal/config"
	"guildbot/internal/tracker"
)

// SettingsModule serves !help and the settings commands of the config
// channel.
type SettingsModule struct {
	bot     *Bot
	tracker *tracker.Tracker
	logger  zerolog.Logger
}

func NewSettingsModule(t *tracker.Tracker) *SettingsModule {
	return &SettingsModule{tracker: t}
}

func (m *SettingsModule) Register(bot *Bot) {
	m.bot = bot
	m.logger = bot.Logger("settings")

	bot.AddCommand(&Command{Name: "help", Help: "Lists the commands usable here", Run: m.help})
	for _, cmd := range []*Command{
		{Name: "getc", Usage: "<key>", Help: "Shows the value of <key>", Run: m.get},
		{Name: "setc", Usage: "<key> <value>", Help: "Changes a value, not for lists", Run: m.set},
		{Name: "setlistc", Usage: "<key> <list>", Help: "Replaces a list, given as a JSON list", Run: m.setList},
		{Name: "addlistc", Usage: "<key> <value>", Help: "Adds <value> to a list", Run: m.addToList},
		{Name: "remlistc", Usage: "<key> <value>", Help: "Removes <value> from a list", Run: m.removeFromList},
		{Name: "showc", Help: "Shows the whole configuration", Run: m.show},
	} {
		cmd.Channel = config.KeyConfigChannel
		bot.AddCommand(cmd)
	}
}

func (m *SettingsModule) help(ctx context.Context, c *Call) error {
	return c.Reply(helpText(m.bot.Commands(), m.bot.Settings(), c.Message.ChannelID))
}

// helpText lists the commands that run in channelID.
func helpText(cmds []*Command, settings *config.Settings, channelID string) string {
	prefix := settings.Prefix()
	var sb strings.Builder
	sb.WriteString("**Commands:**\n")
	for _, cmd := range cmds {
		if cmd.Channel != "" && settings.ID(cmd.Channel) != channelID {
			continue
		}
		usage := prefix + cmd.Name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		fmt.Fprintf(&sb, "`%s` → %s\n", usage, cmd.Help)
	}
	return sb.String()
}

func (m *SettingsModule) get(ctx context.Context, c *Call) error {
	if len(c.Args) < 1 {
		return c.Reply("Usage: getc <key>")
	}
	key := c.Args[0]
	if _, ok := m.bot.Settings().Get(key); !ok {
		return c.Reply("Wrong Key")
	}
	return c.Reply(fmt.Sprintf("%s = %s", key, m.bot.Settings().String(key)))
}

func (m *SettingsModule) set(ctx context.Context, c *Call) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: setc <key> <value>")
	}
	key, value := c.Args[0], c.Rest(1)
	return m.apply(c, key, m.bot.Settings().Set(key, value), fmt.Sprintf("%s was changed to '%s'.", key, value))
}

func (m *SettingsModule) setList(ctx context.Context, c *Call) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: setlistc <key> [\"a\", \"b\"]")
	}
	key, literal := c.Args[0], c.Rest(1)
	return m.apply(c, key, m.bot.Settings().SetList(key, literal), fmt.Sprintf("%s was changed to %s.", key, literal))
}

func (m *SettingsModule) addToList(ctx context.Context, c *Call) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: addlistc <key> <value>")
	}
	key, value := c.Args[0], c.Rest(1)
	return m.apply(c, key, m.bot.Settings().AddToList(key, value), fmt.Sprintf("'%s' was added to %s.", value, key))
}

func (m *SettingsModule) removeFromList(ctx context.Context, c *Call) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: remlistc <key> <value>")
	}
	key, value := c.Args[0], c.Rest(1)
	return m.apply(c, key, m.bot.Settings().RemoveFromList(key, value), fmt.Sprintf("'%s' was removed from %s.", value, key))
}

func (m *SettingsModule) show(ctx context.Context, c *Call) error {
	data, err := m.bot.Settings().JSON()
	if err != nil {
		return wrapError(err)
	}
	return c.Reply("```json\n" + string(data) + "\n```")
}

// apply answers a settings mutation. Settings reject values that would not
// validate, so only valid changes reach the file; they are then pushed to
// the components that read the key.
func (m *SettingsModule) apply(c *Call, key string, err error, done string) error {
	if err != nil {
		return c.Reply(fmt.Sprintf("%s %s", emoji.CrossMark.String(), settingsErrorText(key, err)))
	}

	settings := m.bot.Settings()
	if err := settings.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	m.logger.Info().Str("key", key).Str("user_id", c.Message.Author.ID).Msg("Setting changed")

	switch key {
	case config.KeyActivityBlacklist:
		m.tracker.SetBlacklist(settings.Blacklist())
	case config.KeyPeriodWeekday, config.KeyPeriodHour, config.KeyPeriodTimezone:
		done += " The new period schedule applies after a restart."
	}
	return c.Reply(done)
}

func settingsErrorText(key string, err error) string {
	var cfgErr *config.ConfigError
	switch {
	case errors.Is(err, config.ErrUnknownKey):
		return "Key does not exist."
	case errors.Is(err, config.ErrIsList):
		return fmt.Sprintf("%s is a list, use setlistc, addlistc or remlistc.", key)
	case errors.Is(err, config.ErrNotList):
		return fmt.Sprintf("'%s' is not a list in the config.", key)
	case errors.Is(err, config.ErrDuplicate):
		return fmt.Sprintf("The value is already in %s.", key)
	case errors.Is(err, config.ErrMissing):
		return fmt.Sprintf("The value is not in %s.", key)
	case errors.Is(err, config.ErrWrongType):
		return fmt.Sprintf("Invalid value for %s: %s", key, err)
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("Rejected, %s. Nothing was changed.", cfgErr.Message)
	default:
		return fmt.Sprintf("Invalid input: %s", err)
	}
}
