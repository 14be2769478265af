// Package ledger accumulates per-user activity and voice time into an
// all-time book and a current-period book.
//
// A Ledger is not safe for concurrent use; callers serialize access.
package ledger

import (
	"sort"
	"time"
)

// Selector picks one of the two books.
type Selector int

const (
	AllTime Selector = iota
	Period
)

func (s Selector) String() string {
	if s == Period {
		return "period"
	}
	return "all-time"
}

// Config is the value object a Ledger is built from.
type Config struct {
	Blacklist []string
}

// Snapshot is the set of sessions in progress as reported by the event source.
type Snapshot struct {
	Activities map[string][]Activity // user -> current presence activities
	Voice      map[string]string     // user -> connected voice channel
}

// Ledger holds the all-time and the current-period books. Every session
// operation touches both so they never diverge by more than a reset.
type Ledger struct {
	blacklist   Blacklist
	allTime     *Book
	period      *Book
	periodStart int64
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	return &Ledger{
		blacklist: NewBlacklist(cfg.Blacklist),
		allTime:   newBook(),
		period:    newBook(),
	}
}

// SetBlacklist replaces the classification used for future accrual.
// Already accrued main/duplicate splits are not touched.
func (l *Ledger) SetBlacklist(names []string) {
	l.blacklist = NewBlacklist(names)
}

// Blacklist returns the active classification.
func (l *Ledger) Blacklist() Blacklist {
	return l.blacklist
}

// PeriodStart returns the unix time the current period began, zero if unknown.
func (l *Ledger) PeriodStart() int64 {
	return l.periodStart
}

// SetPeriodStart records when the current period began.
func (l *Ledger) SetPeriodStart(t time.Time) {
	l.periodStart = unix(t)
}

func (l *Ledger) books() [2]*Book {
	return [2]*Book{l.allTime, l.period}
}

func (l *Ledger) book(sel Selector) *Book {
	if sel == Period {
		return l.period
	}
	return l.allTime
}

// StartActivity anchors an activity session at now, creating the accounts if
// needed. Starting an already active session moves the anchor.
func (l *Ledger) StartActivity(user, name string, now time.Time) {
	ts := unix(now)
	for _, b := range l.books() {
		b.activity(user, name).OngoingStart = unixPtr(ts)
	}
}

// StopActivity folds the elapsed time into the accounts and clears the
// anchor. Stopping an idle session is a no-op. It returns the seconds
// credited to the all-time book.
func (l *Ledger) StopActivity(user, name string, now time.Time) int64 {
	ts := unix(now)
	var credited int64
	for i, b := range l.books() {
		acc := b.lookupActivity(user, name)
		if acc == nil || !acc.Active() {
			continue
		}
		elapsed := acc.accrue(name, ts, l.blacklist)
		acc.OngoingStart = nil
		if i == 0 {
			credited = elapsed
		}
	}
	return credited
}

// StartVoice anchors a voice session at now.
func (l *Ledger) StartVoice(user string, now time.Time) {
	ts := unix(now)
	for _, b := range l.books() {
		b.voiceAccount(user).OngoingStart = unixPtr(ts)
	}
}

// StopVoice folds the elapsed voice time and clears the anchor.
func (l *Ledger) StopVoice(user string, now time.Time) int64 {
	ts := unix(now)
	var credited int64
	for i, b := range l.books() {
		acc, ok := b.voice[user]
		if !ok || !acc.Active() {
			continue
		}
		elapsed := acc.accrue(ts)
		acc.OngoingStart = nil
		if i == 0 {
			credited = elapsed
		}
	}
	return credited
}

// ApplyActivityChange starts the activities present only in curr and stops
// those present only in prev.
func (l *Ledger) ApplyActivityChange(user string, prev, curr []Activity, now time.Time) (started, stopped []string) {
	before := nameSet(prev)
	after := nameSet(curr)
	for _, name := range sortedKeys(after) {
		if _, ok := before[name]; !ok {
			l.StartActivity(user, name, now)
			started = append(started, name)
		}
	}
	for _, name := range sortedKeys(before) {
		if _, ok := after[name]; !ok {
			l.StopActivity(user, name, now)
			stopped = append(stopped, name)
		}
	}
	return started, stopped
}

// ApplyVoiceChange maps a channel transition to session operations. Moving
// between channels folds the elapsed time and restarts the anchor.
func (l *Ledger) ApplyVoiceChange(user, prevChannel, currChannel string, now time.Time) {
	switch {
	case prevChannel == "" && currChannel != "":
		l.StartVoice(user, now)
	case prevChannel != "" && currChannel == "":
		l.StopVoice(user, now)
	case prevChannel != currChannel:
		l.StopVoice(user, now)
		l.StartVoice(user, now)
	}
}

// ReconcileAll credits every active session up to now in both books and
// advances the anchors. Calling it twice with the same now is a no-op the
// second time.
func (l *Ledger) ReconcileAll(now time.Time) {
	ts := unix(now)
	for _, b := range l.books() {
		for _, acts := range b.activities {
			for name, acc := range acts {
				if !acc.Active() {
					continue
				}
				acc.accrue(name, ts, l.blacklist)
				advance(&acc.OngoingStart, ts)
			}
		}
		for _, acc := range b.voice {
			if !acc.Active() {
				continue
			}
			acc.accrue(ts)
			advance(&acc.OngoingStart, ts)
		}
	}
}

// ResetPeriod zeroes the period book. Active sessions keep running and are
// credited to the new period from now on. The all-time book is untouched.
func (l *Ledger) ResetPeriod(now time.Time) {
	ts := unix(now)
	for _, acts := range l.period.activities {
		for _, acc := range acts {
			acc.Main, acc.Duplicate = 0, 0
			if acc.Active() {
				acc.OngoingStart = unixPtr(ts)
			}
		}
	}
	for _, acc := range l.period.voice {
		acc.Total = 0
		if acc.Active() {
			acc.OngoingStart = unixPtr(ts)
		}
	}
	l.periodStart = ts
}

// ClearSessions drops every anchor without crediting time and returns how
// many were cleared.
func (l *Ledger) ClearSessions() int {
	cleared := 0
	for _, b := range l.books() {
		cleared += b.clearSessions()
	}
	return cleared
}

// Restore discards persisted anchors and starts exactly the sessions in the
// snapshot at now.
func (l *Ledger) Restore(snap Snapshot, now time.Time) (activities, voice int) {
	l.ClearSessions()
	for user, acts := range snap.Activities {
		for _, name := range sortedKeys(nameSet(acts)) {
			l.StartActivity(user, name, now)
			activities++
		}
	}
	for user, channel := range snap.Voice {
		if channel == "" {
			continue
		}
		l.StartVoice(user, now)
		voice++
	}
	return activities, voice
}

// ActiveActivities returns the names of the user's running activity sessions.
func (l *Ledger) ActiveActivities(user string) []Activity {
	var names []string
	for name, acc := range l.allTime.activities[user] {
		if acc.Active() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]Activity, 0, len(names))
	for _, name := range names {
		out = append(out, Activity{Name: name, Kind: KindPlaying})
	}
	return out
}

// InVoice reports whether the user has a running voice session.
func (l *Ledger) InVoice(user string) bool {
	acc, ok := l.allTime.voice[user]
	return ok && acc.Active()
}

// ActiveCounts returns the number of running activity and voice sessions.
func (l *Ledger) ActiveCounts() (activities, voice int) {
	for _, acts := range l.allTime.activities {
		for _, acc := range acts {
			if acc.Active() {
				activities++
			}
		}
	}
	for _, acc := range l.allTime.voice {
		if acc.Active() {
			voice++
		}
	}
	return activities, voice
}

// Export returns a deep copy of the selected book.
func (l *Ledger) Export(sel Selector) Document {
	d := l.book(sel).document()
	if sel == Period {
		d.PeriodStart = l.periodStart
	}
	return d
}

// Import replaces both books with copies of the given documents.
func (l *Ledger) Import(allTime, period Document) {
	l.allTime = bookFromDocument(allTime)
	l.period = bookFromDocument(period)
	l.periodStart = period.PeriodStart
}

func nameSet(acts []Activity) map[string]struct{} {
	set := make(map[string]struct{}, len(acts))
	for _, a := range acts {
		if a.Trackable() {
			set[a.Name] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
