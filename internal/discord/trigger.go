package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/config"
)

// TriggerModule replaces messages containing the trigger word with the
// trigger message.
type TriggerModule struct {
	bot *Bot
}

func NewTriggerModule() *TriggerModule {
	return &TriggerModule{}
}

func (m *TriggerModule) Register(bot *Bot) {
	m.bot = bot
	bot.OnMessage(m.onMessage)
}

func (m *TriggerModule) onMessage(ctx context.Context, msg *discordgo.MessageCreate) error {
	settings := m.bot.Settings()
	if !containsTrigger(msg.Content, settings.String(config.KeyTriggerWord)) {
		return nil
	}
	s := m.bot.Session()
	if err := s.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithContext(ctx)); err != nil {
		return wrapError(err)
	}
	if reply := settings.String(config.KeyTriggerMessage); reply != "" {
		if _, err := s.ChannelMessageSend(msg.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
			return wrapError(err)
		}
	}
	return nil
}

// containsTrigger matches case-insensitively. An empty word never matches.
func containsTrigger(content, word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(word))
}
