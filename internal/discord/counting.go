package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"

	"guildbot/internal/counting"
	"guildbot/internal/metrics"
)

// CountingModule runs the counting game in its channel.
type CountingModule struct {
	bot  *Bot
	game *counting.Game
}

func NewCountingModule(game *counting.Game) *CountingModule {
	return &CountingModule{game: game}
}

func (m *CountingModule) Register(bot *Bot) {
	m.bot = bot
	bot.OnMessage(m.onMessage)
	bot.AddCommand(&Command{
		Name: "startcount",
		Help: "Starts the counting game in this channel",
		Run:  m.start,
	})
	bot.AddCommand(&Command{
		Name: "highscore",
		Help: "Shows the counting game highscore",
		Run:  m.highscore,
	})
}

func (m *CountingModule) onMessage(ctx context.Context, msg *discordgo.MessageCreate) error {
	outcome, state, err := m.game.Handle(ctx, msg.ChannelID, msg.Author.ID, msg.Content)
	if err != nil {
		return err
	}
	s := m.bot.Session()
	mention := msg.Author.Mention()

	switch outcome {
	case counting.Ignored:
		return nil
	case counting.DoubleTurn:
		if err := s.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
			return wrapError(err)
		}
		return m.bot.sendTemp(msg.ChannelID, fmt.Sprintf("%s, you cannot count twice in a row!", mention), 7*time.Second)
	case counting.Correct:
		return react(s, msg.Message, emoji.CheckMarkButton.String())
	}

	metrics.CountingBreaks.Inc()
	if err := react(s, msg.Message, emoji.NoEntry.String()); err != nil {
		return err
	}
	reason := "broke the count"
	if outcome == counting.Wrong {
		reason = "counted wrong"
	}
	_, err = s.ChannelMessageSend(msg.ChannelID, fmt.Sprintf("%s %s! Restarting at 1. (highscore: %d)", mention, reason, state.Highscore))
	if err != nil {
		return wrapError(err)
	}
	return nil
}

func (m *CountingModule) start(ctx context.Context, c *Call) error {
	if _, err := m.game.Start(ctx, c.Message.ChannelID); err != nil {
		return err
	}
	return c.Reply("Counting game started! Start with 1.")
}

func (m *CountingModule) highscore(ctx context.Context, c *Call) error {
	return c.Reply(fmt.Sprintf("highscore: %d", m.game.State().Highscore))
}

func react(s *discordgo.Session, msg *discordgo.Message, e string) error {
	if err := s.MessageReactionAdd(msg.ChannelID, msg.ID, e); err != nil {
		return wrapError(err)
	}
	return nil
}
