package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
)

const nameCacheSize = 2048

// nameCache resolves user ids to display names from recent events and the
// gateway state. Users it cannot resolve are treated as gone.
type nameCache struct {
	state *discordgo.State
	cache *lru.Cache[string, string]
}

func newNameCache(state *discordgo.State, size int) (*nameCache, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}
	return &nameCache{state: state, cache: cache}, nil
}

// Remember stores the name of a user seen in an event.
func (n *nameCache) Remember(user *discordgo.User, member *discordgo.Member) {
	if user == nil || user.ID == "" {
		return
	}
	if name := displayName(user, member); name != "" {
		n.cache.Add(user.ID, name)
	}
}

// Lookup returns the user's display name.
func (n *nameCache) Lookup(userID string) (string, bool) {
	if name, ok := n.cache.Get(userID); ok {
		return name, true
	}
	if n.state == nil {
		return "", false
	}

	n.state.RLock()
	guilds := make([]string, 0, len(n.state.Guilds))
	for _, g := range n.state.Guilds {
		guilds = append(guilds, g.ID)
	}
	n.state.RUnlock()

	for _, guildID := range guilds {
		member, err := n.state.Member(guildID, userID)
		if err != nil || member.User == nil {
			continue
		}
		if name := displayName(member.User, member); name != "" {
			n.cache.Add(userID, name)
			return name, true
		}
	}
	return "", false
}

// displayName prefers the guild nickname, then the global name, then the
// username.
func displayName(user *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
