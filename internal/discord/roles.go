package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enescakir/emoji"

	"guildbot/internal/config"
)

const roleNoticeTTL = 12 * time.Second

// RolesModule grants the role named by a message in the role channel to
// members who react to it, and revokes it when the reaction goes.
type RolesModule struct {
	bot *Bot
}

func NewRolesModule() *RolesModule {
	return &RolesModule{}
}

func (m *RolesModule) Register(bot *Bot) {
	m.bot = bot
	s := bot.Session()
	s.AddHandler(handle(bot, "reaction_add", func(ctx context.Context, r *discordgo.MessageReactionAdd) error {
		var user *discordgo.User
		if r.Member != nil {
			user = r.Member.User
		}
		return m.apply(ctx, r.MessageReaction, user, true)
	}))
	s.AddHandler(handle(bot, "reaction_remove", func(ctx context.Context, r *discordgo.MessageReactionRemove) error {
		return m.apply(ctx, r.MessageReaction, nil, false)
	}))
}

func (m *RolesModule) apply(ctx context.Context, r *discordgo.MessageReaction, user *discordgo.User, grant bool) error {
	if r == nil || r.GuildID == "" || r.ChannelID != m.bot.Settings().ID(config.KeyRoleChannel) {
		return nil
	}
	s := m.bot.Session()

	if user == nil {
		member, err := s.State.Member(r.GuildID, r.UserID)
		if err != nil {
			if member, err = s.GuildMember(r.GuildID, r.UserID, discordgo.WithContext(ctx)); err != nil {
				return wrapError(err)
			}
		}
		user = member.User
	}
	if m.bot.isBot(r.GuildID, user) {
		return nil
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return wrapError(err)
	}
	roleName := strings.TrimSpace(msg.Content)
	role, err := m.findRole(ctx, r.GuildID, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		m.bot.SendLog(fmt.Sprintf("%s Role %q from %s's message does not exist", emoji.CrossMark.String(), roleName, msg.Author.Username))
		return nil
	}

	name := displayName(user, nil)
	var notice string
	if grant {
		if err := s.GuildMemberRoleAdd(r.GuildID, r.UserID, role.ID, discordgo.WithContext(ctx)); err != nil {
			return wrapError(err)
		}
		notice = fmt.Sprintf("%s %s received the role %s", emoji.CheckMarkButton.String(), name, role.Name)
	} else {
		if err := s.GuildMemberRoleRemove(r.GuildID, r.UserID, role.ID, discordgo.WithContext(ctx)); err != nil {
			return wrapError(err)
		}
		notice = fmt.Sprintf("%s %s lost the role %s", emoji.CrossMark.String(), name, role.Name)
	}
	m.bot.SendLog(notice)
	return m.bot.sendTemp(r.ChannelID, notice, roleNoticeTTL)
}

func (m *RolesModule) findRole(ctx context.Context, guildID, name string) (*discordgo.Role, error) {
	if name == "" {
		return nil, nil
	}
	s := m.bot.Session()
	roles, err := s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError(err)
	}
	return roleByName(roles, name), nil
}

func roleByName(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}
