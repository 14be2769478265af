// Package backup keeps one snapshot of every finished period and derives
// period totals by diffing the all-time book against their sum.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"guildbot/internal/ledger"
	"guildbot/internal/storage"
)

const (
	// Prefix is the key prefix of every period backup.
	Prefix = "weekly_backup/weekly_data_"
	// BaselineKey caches the sum of all backups.
	BaselineKey = "weekly_backup_total.json"
	// MaxBaselineAge is how long a cached baseline is trusted.
	MaxBaselineAge = 7 * 24 * time.Hour
)

// Baseline is the combined total of every backup at the time it was built.
type Baseline struct {
	ledger.Document
	BackupCount int   `json:"_backup_count"`
	GeneratedAt int64 `json:"generated_at"`
}

// Name returns the key for the index-th backup taken at the given time.
func Name(index int, at time.Time) string {
	return fmt.Sprintf("%s%d_%s.json", Prefix, index, at.Format("02_01_2006"))
}

// ParseIndex extracts the index from a backup key.
func ParseIndex(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	return n, err == nil
}

// List returns the backup keys ordered by index.
func List(ctx context.Context, store storage.Store) ([]string, error) {
	keys, err := store.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := ParseIndex(out[i])
		b, _ := ParseIndex(out[j])
		return a < b
	})
	return out, nil
}

// Write stores the period document as the next backup and returns its key.
// Its index is one past the highest existing index, so gaps left by removed
// backups are never reused. Running session anchors are not part of a backup.
func Write(ctx context.Context, store storage.Store, period ledger.Document, at time.Time) (string, error) {
	existing, err := List(ctx, store)
	if err != nil {
		return "", fmt.Errorf("list backups: %w", err)
	}
	last := 0
	for _, k := range existing {
		if n, ok := ParseIndex(k); ok && n > last {
			last = n
		}
	}
	key := Name(last+1, at)
	if err := storage.SaveJSON(ctx, store, key, totalsOnly(period)); err != nil {
		return "", fmt.Errorf("write backup %s: %w", key, err)
	}
	return key, nil
}

// CombineResult is the sum of every readable backup.
type CombineResult struct {
	Total   ledger.Document
	Count   int      // backups found
	Skipped []string // backups that could not be read
}

// Combine sums every backup. Unreadable backups are skipped and reported.
func Combine(ctx context.Context, store storage.Store) (CombineResult, error) {
	keys, err := List(ctx, store)
	if err != nil {
		return CombineResult{}, fmt.Errorf("list backups: %w", err)
	}
	res := CombineResult{Total: ledger.NewDocument(), Count: len(keys)}
	for _, key := range keys {
		var doc ledger.Document
		data, err := store.Load(ctx, key)
		if err == nil {
			err = json.Unmarshal(data, &doc)
		}
		if err != nil {
			res.Skipped = append(res.Skipped, key)
			continue
		}
		add(res.Total, doc)
	}
	return res, nil
}

// LoadOrRebuildBaseline returns the cached baseline while it still covers
// every backup and is younger than MaxBaselineAge; otherwise it recombines
// the backups and stores a fresh cache.
func LoadOrRebuildBaseline(ctx context.Context, store storage.Store, now time.Time) (Baseline, bool, error) {
	keys, err := List(ctx, store)
	if err != nil {
		return Baseline{}, false, fmt.Errorf("list backups: %w", err)
	}

	var cached Baseline
	err = storage.LoadJSON(ctx, store, BaselineKey, &cached)
	switch {
	case err == nil:
		age := now.Sub(time.Unix(cached.GeneratedAt, 0))
		if cached.BackupCount == len(keys) && age >= 0 && age < MaxBaselineAge {
			return cached, false, nil
		}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrCorrupt):
	default:
		return Baseline{}, false, err
	}

	res, err := Combine(ctx, store)
	if err != nil {
		return Baseline{}, false, err
	}
	fresh := Baseline{Document: res.Total, BackupCount: res.Count, GeneratedAt: now.Unix()}
	if err := storage.SaveJSON(ctx, store, BaselineKey, fresh); err != nil {
		return fresh, true, fmt.Errorf("save baseline: %w", err)
	}
	return fresh, true, nil
}

// WeeklyDelta subtracts the baseline from the all-time totals, clamping
// every figure at zero.
func WeeklyDelta(current, baseline ledger.Document) ledger.Document {
	out := ledger.NewDocument()
	for user, acts := range current.ActivityTimes {
		prev := baseline.ActivityTimes[user]
		row := make(map[string]ledger.ActivityAccount, len(acts))
		for name, acc := range acts {
			p := prev[name]
			row[name] = ledger.ActivityAccount{
				Main:      clamp(acc.Main - p.Main),
				Duplicate: clamp(acc.Duplicate - p.Duplicate),
			}
		}
		out.ActivityTimes[user] = row
	}
	for user, acc := range current.VoiceTimes {
		out.VoiceTimes[user] = ledger.VoiceAccount{Total: clamp(acc.Total - baseline.VoiceTimes[user].Total)}
	}
	return out
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func totalsOnly(d ledger.Document) ledger.Document {
	out := d.Clone()
	for _, acts := range out.ActivityTimes {
		for name, acc := range acts {
			acc.OngoingStart = nil
			acts[name] = acc
		}
	}
	for user, acc := range out.VoiceTimes {
		acc.OngoingStart = nil
		out.VoiceTimes[user] = acc
	}
	return out
}

func add(dst, src ledger.Document) {
	for user, acts := range src.ActivityTimes {
		row, ok := dst.ActivityTimes[user]
		if !ok {
			row = make(map[string]ledger.ActivityAccount, len(acts))
			dst.ActivityTimes[user] = row
		}
		for name, acc := range acts {
			sum := row[name]
			sum.Main += acc.Main
			sum.Duplicate += acc.Duplicate
			row[name] = sum
		}
	}
	for user, acc := range src.VoiceTimes {
		sum := dst.VoiceTimes[user]
		sum.Total += acc.Total
		dst.VoiceTimes[user] = sum
	}
}
