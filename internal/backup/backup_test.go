package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guildbot/internal/ledger"
	"guildbot/internal/storage"
)

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func doc(user, act string, main, dup, voice int64) ledger.Document {
	d := ledger.NewDocument()
	if act != "" {
		d.ActivityTimes[user] = map[string]ledger.ActivityAccount{act: {Main: main, Duplicate: dup}}
	}
	if voice > 0 {
		d.VoiceTimes[user] = ledger.VoiceAccount{Total: voice}
	}
	return d
}

func TestNameAndParseIndex(t *testing.T) {
	at := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	name := Name(12, at)
	if name != "weekly_backup/weekly_data_12_03_03_2024.json" {
		t.Errorf("Name = %q", name)
	}
	if n, ok := ParseIndex(name); !ok || n != 12 {
		t.Errorf("ParseIndex = %d, %v; want 12, true", n, ok)
	}
	if _, ok := ParseIndex("activity_data.json"); ok {
		t.Error("ParseIndex accepted a non-backup key")
	}
}

func TestWriteIndexesSequentially(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	start := int64(100)
	period := doc("u1", "Chess", 60, 0, 30)
	acc := period.ActivityTimes["u1"]["Chess"]
	acc.OngoingStart = &start
	period.ActivityTimes["u1"]["Chess"] = acc

	for i := 1; i <= 11; i++ {
		key, err := Write(ctx, s, period, at.AddDate(0, 0, 7*i))
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		if n, _ := ParseIndex(key); n != i {
			t.Errorf("backup %d got index %d", i, n)
		}
	}

	keys, err := List(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := ParseIndex(keys[len(keys)-1]); n != 11 {
		t.Errorf("List is not ordered by index: %v", keys)
	}

	var stored ledger.Document
	if err := storage.LoadJSON(ctx, s, keys[0], &stored); err != nil {
		t.Fatal(err)
	}
	if stored.ActivityTimes["u1"]["Chess"].OngoingStart != nil {
		t.Error("backup kept a session anchor")
	}
}

func TestWriteSkipsRemovedIndexes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	var keys []string
	for i := 0; i < 3; i++ {
		key, err := Write(ctx, s, doc("u1", "Chess", 10, 0, 0), at.AddDate(0, 0, 7*i))
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		keys = append(keys, key)
	}
	// An operator deletes the second backup by hand.
	if err := os.Remove(filepath.Join(s.Root(), filepath.FromSlash(keys[1]))); err != nil {
		t.Fatal(err)
	}

	key, err := Write(ctx, s, doc("u1", "Chess", 20, 0, 0), at.AddDate(0, 0, 21))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n, _ := ParseIndex(key); n != 4 {
		t.Errorf("new backup index = %d, want 4", n)
	}
	var kept ledger.Document
	if err := storage.LoadJSON(ctx, s, keys[2], &kept); err != nil {
		t.Fatalf("third backup: %v", err)
	}
	if got := kept.ActivityTimes["u1"]["Chess"].Main; got != 10 {
		t.Errorf("third backup overwritten: Chess = %d, want 10", got)
	}
}

func TestCombineSkipsCorruptBackups(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	if _, err := Write(ctx, s, doc("u1", "Chess", 100, 5, 50), at); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, Name(2, at.AddDate(0, 0, 7)), []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(ctx, s, doc("u1", "Chess", 40, 0, 10), at.AddDate(0, 0, 14)); err != nil {
		t.Fatal(err)
	}

	res, err := Combine(ctx, s)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Count != 3 || len(res.Skipped) != 1 {
		t.Errorf("Count = %d, Skipped = %v; want 3 and one skipped", res.Count, res.Skipped)
	}
	got := res.Total.ActivityTimes["u1"]["Chess"]
	if got.Main != 140 || got.Duplicate != 5 {
		t.Errorf("combined Chess = %+v, want main 140 duplicate 5", got)
	}
	if v := res.Total.VoiceTimes["u1"].Total; v != 60 {
		t.Errorf("combined voice = %d, want 60", v)
	}
}

func TestLoadOrRebuildBaseline(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	if _, err := Write(ctx, s, doc("u1", "Chess", 100, 0, 0), now); err != nil {
		t.Fatal(err)
	}

	base, rebuilt, err := LoadOrRebuildBaseline(ctx, s, now)
	if err != nil || !rebuilt {
		t.Fatalf("first call rebuilt=%v err=%v, want rebuild", rebuilt, err)
	}
	if base.BackupCount != 1 || base.ActivityTimes["u1"]["Chess"].Main != 100 {
		t.Errorf("baseline = %+v", base)
	}

	if _, rebuilt, _ = LoadOrRebuildBaseline(ctx, s, now.Add(time.Hour)); rebuilt {
		t.Error("fresh cache was rebuilt")
	}

	if _, err := Write(ctx, s, doc("u1", "Chess", 20, 0, 0), now.AddDate(0, 0, 7)); err != nil {
		t.Fatal(err)
	}
	base, rebuilt, _ = LoadOrRebuildBaseline(ctx, s, now.Add(2*time.Hour))
	if !rebuilt || base.ActivityTimes["u1"]["Chess"].Main != 120 {
		t.Errorf("new backup: rebuilt=%v main=%d, want rebuild to 120", rebuilt, base.ActivityTimes["u1"]["Chess"].Main)
	}

	if _, rebuilt, _ = LoadOrRebuildBaseline(ctx, s, now.Add(MaxBaselineAge+3*time.Hour)); !rebuilt {
		t.Error("stale cache was reused")
	}
}

func TestWeeklyDeltaNeverNegative(t *testing.T) {
	current := doc("u1", "Chess", 50, 10, 20)
	baseline := doc("u1", "Chess", 80, 4, 70)

	delta := WeeklyDelta(current, baseline)
	got := delta.ActivityTimes["u1"]["Chess"]
	if got.Main != 0 || got.Duplicate != 6 {
		t.Errorf("delta = %+v, want main 0 duplicate 6", got)
	}
	if v := delta.VoiceTimes["u1"].Total; v != 0 {
		t.Errorf("voice delta = %d, want 0", v)
	}
}

func TestAuditMatchesLivePeriod(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC)

	// Week one ends with 300s of Chess, week two has 120s so far.
	if _, err := Write(ctx, s, doc("u1", "Chess", 300, 0, 60), now.AddDate(0, 0, -7)); err != nil {
		t.Fatal(err)
	}
	allTime := doc("u1", "Chess", 420, 0, 90)
	period := doc("u1", "Chess", 120, 0, 30)

	report, err := Audit(ctx, s, allTime, period, 0, now)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !report.Clean() || len(report.Drifts) != 0 {
		t.Errorf("drifts = %+v, want none", report.Drifts)
	}

	period = doc("u1", "Chess", 100, 0, 30)
	report, err = Audit(ctx, s, allTime, period, 5, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.Clean() || len(report.Drifts) != 1 {
		t.Fatalf("drifts = %+v, want one hard drift", report.Drifts)
	}
	if d := report.Drifts[0]; d.Derived != 120 || d.Live != 100 {
		t.Errorf("drift = %+v", d)
	}
}
