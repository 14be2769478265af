package ledger

import (
	"strings"
	"time"
)

// Kind classifies a presence activity. Values mirror the gateway activity types.
type Kind int

const (
	KindPlaying Kind = iota
	KindStreaming
	KindListening
	KindWatching
	KindCustom
	KindCompeting
)

// Activity is a presence entry normalized at the event source boundary.
type Activity struct {
	Name string
	Kind Kind
}

// Trackable reports whether the activity accrues time. Custom statuses never do.
func (a Activity) Trackable() bool {
	return a.Kind != KindCustom && strings.TrimSpace(a.Name) != ""
}

// ActivityAccount holds a user's accumulated seconds for one activity name.
type ActivityAccount struct {
	Main         int64  `json:"main"`
	Duplicate    int64  `json:"duplicate"`
	OngoingStart *int64 `json:"ongoing_start"`
}

// VoiceAccount holds a user's accumulated voice channel seconds.
type VoiceAccount struct {
	Total        int64  `json:"total"`
	OngoingStart *int64 `json:"ongoing_start"`
}

// Active reports whether time is currently accruing.
func (a *ActivityAccount) Active() bool { return a.OngoingStart != nil }

// Active reports whether time is currently accruing.
func (v *VoiceAccount) Active() bool { return v.OngoingStart != nil }

// accrue folds the time since the anchor into main or duplicate and returns
// the seconds credited. The anchor is left untouched.
func (a *ActivityAccount) accrue(name string, now int64, blacklist Blacklist) int64 {
	if a.OngoingStart == nil {
		return 0
	}
	elapsed := since(*a.OngoingStart, now)
	if blacklist.Contains(name) {
		a.Duplicate += elapsed
	} else {
		a.Main += elapsed
	}
	return elapsed
}

func (v *VoiceAccount) accrue(now int64) int64 {
	if v.OngoingStart == nil {
		return 0
	}
	elapsed := since(*v.OngoingStart, now)
	v.Total += elapsed
	return elapsed
}

// advance moves a set anchor forward to now. A clock that went backwards
// leaves the anchor where it is.
func advance(anchor **int64, now int64) {
	if *anchor == nil || now < **anchor {
		return
	}
	*anchor = unixPtr(now)
}

func since(start, now int64) int64 {
	if now < start {
		return 0
	}
	return now - start
}

func unixPtr(ts int64) *int64 {
	return &ts
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return unixPtr(*p)
}

func unix(t time.Time) int64 {
	return t.Unix()
}
