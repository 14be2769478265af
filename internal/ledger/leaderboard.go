package ledger

import "sort"

// ActivityTotal is one activity line of a standing.
type ActivityTotal struct {
	Name        string
	Main        int64
	Duplicate   int64
	Blacklisted bool
}

// Standing is a user's row on the activity leaderboard.
type Standing struct {
	UserID     string
	TotalMain  int64
	Activities []ActivityTotal
}

// VoiceStanding is a user's row on the voice leaderboard.
type VoiceStanding struct {
	UserID string
	Total  int64
}

// Leaderboard ranks the selected book. Callers reconcile first so the
// totals include time up to now.
func (l *Ledger) Leaderboard(sel Selector, topN int, known func(string) bool) []Standing {
	return RankActivities(l.Export(sel), topN, known, l.blacklist)
}

// VoiceLeaderboard ranks the selected book's voice totals.
func (l *Ledger) VoiceLeaderboard(sel Selector, topN int, known func(string) bool) []VoiceStanding {
	return RankVoice(l.Export(sel), topN, known)
}

// UserStats returns the all-time standing and voice account of one user.
func (l *Ledger) UserStats(user string) (Standing, VoiceAccount, bool) {
	d := l.Export(AllTime)
	acts, hasActs := d.ActivityTimes[user]
	voice, hasVoice := d.VoiceTimes[user]
	return standing(user, acts, l.blacklist), voice, hasActs || hasVoice
}

// RankActivities orders users by total main seconds, highest first, ties by
// user id. Users rejected by known are skipped. topN <= 0 means no limit.
func RankActivities(d Document, topN int, known func(string) bool, blacklist Blacklist) []Standing {
	out := make([]Standing, 0, len(d.ActivityTimes))
	for user, acts := range d.ActivityTimes {
		if len(acts) == 0 || (known != nil && !known(user)) {
			continue
		}
		out = append(out, standing(user, acts, blacklist))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMain != out[j].TotalMain {
			return out[i].TotalMain > out[j].TotalMain
		}
		return out[i].UserID < out[j].UserID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// RankVoice orders users by voice seconds, dropping empty totals.
func RankVoice(d Document, topN int, known func(string) bool) []VoiceStanding {
	out := make([]VoiceStanding, 0, len(d.VoiceTimes))
	for user, acc := range d.VoiceTimes {
		if acc.Total <= 0 || (known != nil && !known(user)) {
			continue
		}
		out = append(out, VoiceStanding{UserID: user, Total: acc.Total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func standing(user string, acts map[string]ActivityAccount, blacklist Blacklist) Standing {
	s := Standing{UserID: user, Activities: make([]ActivityTotal, 0, len(acts))}
	for name, acc := range acts {
		s.TotalMain += acc.Main
		s.Activities = append(s.Activities, ActivityTotal{
			Name:        name,
			Main:        acc.Main,
			Duplicate:   acc.Duplicate,
			Blacklisted: blacklist.Contains(name),
		})
	}
	sort.Slice(s.Activities, func(i, j int) bool {
		a, b := s.Activities[i], s.Activities[j]
		if a.Main != b.Main {
			return a.Main > b.Main
		}
		return a.Name < b.Name
	})
	return s
}
