package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"
	"github.com/rs/zerolog"

	"guildbot/internal/birthday"
	"guildbot/internal/config"
)

const birthdayCheckInterval = 8 * time.Hour

// BirthdayModule greets members on their birthday.
type BirthdayModule struct {
	bot      *Bot
	registry *birthday.Registry
	logger   zerolog.Logger
	once     sync.Once
}

func NewBirthdayModule(registry *birthday.Registry) *BirthdayModule {
	return &BirthdayModule{registry: registry}
}

func (m *BirthdayModule) Register(bot *Bot) {
	m.bot = bot
	m.logger = bot.Logger("birthday")

	bot.Session().AddHandler(handle(bot, "ready", func(ctx context.Context, _ *discordgo.Ready) error {
		m.once.Do(func() { go m.run(bot.context()) })
		return nil
	}))
	bot.AddCommand(&Command{
		Name:  "addbirthday",
		Usage: "MM-DD",
		Help:  "Stores your birthday",
		Run:   m.add,
	})
	bot.AddCommand(&Command{
		Name: "removebirthday",
		Help: "Removes your stored birthday",
		Run:  m.remove,
	})
}

func (m *BirthdayModule) run(ctx context.Context) {
	ticker := time.NewTicker(birthdayCheckInterval)
	defer ticker.Stop()

	for {
		if err := m.check(ctx); err != nil {
			m.bot.reporter.Report(Incident{Event: "birthday_check", Err: err})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// today is the current time in the guild's configured timezone.
func (m *BirthdayModule) today() time.Time {
	_, _, loc, err := m.bot.Settings().PeriodBoundary()
	if err != nil {
		return time.Now()
	}
	return time.Now().In(loc)
}

func (m *BirthdayModule) check(ctx context.Context) error {
	channelID := m.bot.Settings().ID(config.KeyBirthdayChannel)
	if channelID == "" {
		m.logger.Debug().Msg("Birthday channel not configured")
		return nil
	}

	day := m.today()
	due, err := m.registry.Due(ctx, day)
	if err != nil {
		return err
	}
	for _, userID := range due {
		// Unsent greetings stay due for the next check.
		if err := m.greet(ctx, channelID, userID); err != nil {
			m.bot.reporter.Report(Incident{Event: "birthday_greeting", UserID: userID, Err: err})
			continue
		}
		if err := m.registry.MarkGreeted(ctx, userID, day); err != nil {
			m.bot.reporter.Report(Incident{Event: "birthday_greeting", UserID: userID, Err: err})
		}
	}
	m.bot.SendLog("Birthdays checked")
	return nil
}

// greet posts the birthday greeting for one user.
func (m *BirthdayModule) greet(ctx context.Context, channelID, userID string) error {
	s := m.bot.Session()
	name, known := m.bot.names.Lookup(userID)
	if !known {
		name = "someone"
	} else {
		name += "'s"
	}
	greeting := fmt.Sprintf("@everyone %s It's %s birthday today! %s", emoji.PartyPopper.String(), name, emoji.BirthdayCake.String())
	if _, err := s.ChannelMessageSend(channelID, greeting, discordgo.WithContext(ctx)); err != nil {
		return wrapError(err)
	}
	if message := m.bot.Settings().String(config.KeyBirthdayMessage); message != "" {
		if _, err := s.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx)); err != nil {
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to send birthday message")
		}
	}
	m.logger.Info().Str("user_id", userID).Bool("known", known).Msg("Birthday greeted")
	m.bot.SendLog(fmt.Sprintf("It's %s birthday today! %s", name, emoji.BirthdayCake.String()))
	return nil
}

func (m *BirthdayModule) add(ctx context.Context, c *Call) error {
	if len(c.Args) == 0 {
		return c.Reply(fmt.Sprintf("%s Please use a valid date format: MM-DD", emoji.CrossMark.String()))
	}
	date, err := m.registry.Set(ctx, c.Message.Author.ID, c.Args[0])
	if errors.Is(err, birthday.ErrInvalidDate) {
		return c.Reply(fmt.Sprintf("%s Please use a valid date format: MM-DD", emoji.CrossMark.String()))
	}
	if err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("%s Your birthday has been set to %s, %s!", emoji.CheckMarkButton.String(), date, c.Message.Author.Mention()))
}

func (m *BirthdayModule) remove(ctx context.Context, c *Call) error {
	removed, err := m.registry.Remove(ctx, c.Message.Author.ID)
	if err != nil {
		return err
	}
	if !removed {
		return c.Reply(fmt.Sprintf("%s You don't have a birthday stored!", emoji.CrossMark.String()))
	}
	return c.Reply(fmt.Sprintf("%s Your birthday has been removed, %s!", emoji.CheckMarkButton.String(), c.Message.Author.Mention()))
}
