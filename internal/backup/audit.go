package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"guildbot/internal/ledger"
	"guildbot/internal/storage"
)

// Drift is one figure where the derived period total disagrees with the
// live period book.
type Drift struct {
	UserID   string
	Name     string // activity name, empty for voice
	Derived  int64
	Live     int64
	Tolerate bool // within the allowed skew
}

// Report is the outcome of an audit run.
type Report struct {
	Backups         int
	Skipped         []string
	BaselineRebuilt bool
	Drifts          []Drift
}

// Clean reports whether every figure matched within tolerance.
func (r Report) Clean() bool {
	for _, d := range r.Drifts {
		if !d.Tolerate {
			return false
		}
	}
	return true
}

// Audit derives the current period from the all-time book and the backup
// baseline, then compares it with the live period book. Differences up to
// skew seconds are tolerated, since the two books are saved separately.
func Audit(ctx context.Context, store storage.Store, allTime, period ledger.Document, skew int64, now time.Time) (Report, error) {
	baseline, rebuilt, err := LoadOrRebuildBaseline(ctx, store, now)
	if err != nil {
		return Report{}, fmt.Errorf("baseline: %w", err)
	}
	res, err := Combine(ctx, store)
	if err != nil {
		return Report{}, err
	}

	derived := WeeklyDelta(allTime, baseline.Document)
	report := Report{
		Backups:         baseline.BackupCount,
		Skipped:         res.Skipped,
		BaselineRebuilt: rebuilt,
		Drifts:          Compare(derived, period, skew),
	}
	return report, nil
}

// Compare lists every main and voice figure that differs between two books.
func Compare(derived, live ledger.Document, skew int64) []Drift {
	var out []Drift
	check := func(user, name string, a, b int64) {
		if a == b {
			return
		}
		diff := a - b
		if diff < 0 {
			diff = -diff
		}
		out = append(out, Drift{UserID: user, Name: name, Derived: a, Live: b, Tolerate: diff <= skew})
	}

	for user, acts := range derived.ActivityTimes {
		for name, acc := range acts {
			check(user, name, acc.Main, live.ActivityTimes[user][name].Main)
		}
	}
	for user, acts := range live.ActivityTimes {
		for name, acc := range acts {
			if _, seen := derived.ActivityTimes[user][name]; !seen {
				check(user, name, 0, acc.Main)
			}
		}
	}
	for user, acc := range derived.VoiceTimes {
		check(user, "", acc.Total, live.VoiceTimes[user].Total)
	}
	for user, acc := range live.VoiceTimes {
		if _, seen := derived.VoiceTimes[user]; !seen {
			check(user, "", 0, acc.Total)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
