package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/config"
	"guildbot/pkg/utils"
)

// Command is a prefix command such as "!leaderboard".
type Command struct {
	Name  string
	Usage string
	Help  string
	// Channel is a settings key naming the only channel the command runs in.
	Channel   string
	AdminOnly bool
	Run       func(ctx context.Context, c *Call) error
}

// Call is one invocation of a command.
type Call struct {
	Bot     *Bot
	Message *discordgo.MessageCreate
	Args    []string
}

// Rest joins the arguments starting at i back into one string.
func (c *Call) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// IsAdmin reports whether the author is the configured admin user.
func (c *Call) IsAdmin() bool {
	admin := c.Bot.settings.ID(config.KeyAdminUser)
	return admin != "" && admin == c.Message.Author.ID
}

// Reply sends content to the command's channel.
func (c *Call) Reply(content string) error {
	_, err := c.Bot.session.ChannelMessageSend(c.Message.ChannelID, content)
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// ReplyTemp sends content to the command's channel and deletes it after ttl.
func (c *Call) ReplyTemp(content string, ttl time.Duration) error {
	return c.Bot.sendTemp(c.Message.ChannelID, content, ttl)
}

// ReplyEmbeds sends embeds to the command's channel.
func (c *Call) ReplyEmbeds(embeds ...*discordgo.MessageEmbed) error {
	_, err := c.Bot.session.ChannelMessageSendEmbeds(c.Message.ChannelID, embeds)
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// TargetUser returns the mentioned user in argument i, or the author.
func (c *Call) TargetUser(i int) string {
	if i < len(c.Args) && utils.IsUserMention(c.Args[i]) {
		return utils.ExtractUserIDFromMention(c.Args[i])
	}
	return c.Message.Author.ID
}

// parseCommand splits "<prefix>name arg..." into its name and arguments.
func parseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
