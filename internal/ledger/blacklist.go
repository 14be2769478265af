package ledger

import (
	"sort"
	"strings"
)

// Blacklist is a case-insensitive set of activity names whose time is
// recorded as duplicate instead of main.
type Blacklist map[string]struct{}

// NewBlacklist builds a Blacklist from configured names.
func NewBlacklist(names []string) Blacklist {
	b := make(Blacklist, len(names))
	for _, name := range names {
		key := normalize(name)
		if key == "" {
			continue
		}
		b[key] = struct{}{}
	}
	return b
}

// Contains reports whether name is blacklisted.
func (b Blacklist) Contains(name string) bool {
	_, ok := b[normalize(name)]
	return ok
}

// Names returns the normalized names in sorted order.
func (b Blacklist) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
