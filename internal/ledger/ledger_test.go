package ledger_test

import (
	"testing"
	"time"

	"guildbot/internal/ledger"
)

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func activity(t *testing.T, l *ledger.Ledger, sel ledger.Selector, user, name string) ledger.ActivityAccount {
	t.Helper()
	acc, ok := l.Export(sel).ActivityTimes[user][name]
	if !ok {
		t.Fatalf("%s account %s/%s missing", sel, user, name)
	}
	return acc
}

func voice(t *testing.T, l *ledger.Ledger, sel ledger.Selector, user string) ledger.VoiceAccount {
	t.Helper()
	acc, ok := l.Export(sel).VoiceTimes[user]
	if !ok {
		t.Fatalf("%s voice account %s missing", sel, user)
	}
	return acc
}

func TestAccrualConservation(t *testing.T) {
	for _, sel := range []ledger.Selector{ledger.AllTime, ledger.Period} {
		l := ledger.New(ledger.Config{})
		l.StartActivity("u1", "Chess", at(1000))
		l.StopActivity("u1", "Chess", at(1250))

		acc := activity(t, l, sel, "u1", "Chess")
		if acc.Main != 250 {
			t.Errorf("%s main = %d, want 250", sel, acc.Main)
		}
		if acc.Duplicate != 0 {
			t.Errorf("%s duplicate = %d, want 0", sel, acc.Duplicate)
		}
		if acc.OngoingStart != nil {
			t.Errorf("%s ongoing_start = %d, want nil", sel, *acc.OngoingStart)
		}
	}
}

func TestBlacklistRouting(t *testing.T) {
	l := ledger.New(ledger.Config{Blacklist: []string{"Spotify"}})
	l.StartActivity("u1", "SPOTIFY", at(1000))
	l.ReconcileAll(at(1030))
	l.StopActivity("u1", "SPOTIFY", at(1100))

	acc := activity(t, l, ledger.AllTime, "u1", "SPOTIFY")
	if acc.Duplicate != 100 {
		t.Errorf("duplicate = %d, want 100", acc.Duplicate)
	}
	if acc.Main != 0 {
		t.Errorf("main = %d, want 0", acc.Main)
	}
}

func TestBlacklistDecidedPerWindow(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Spotify", at(0))
	l.ReconcileAll(at(60))
	l.SetBlacklist([]string{"spotify"})
	l.ReconcileAll(at(100))

	acc := activity(t, l, ledger.AllTime, "u1", "Spotify")
	if acc.Main != 60 || acc.Duplicate != 40 {
		t.Errorf("main/duplicate = %d/%d, want 60/40", acc.Main, acc.Duplicate)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(0))
	l.StartVoice("u1", at(0))

	l.ReconcileAll(at(30))
	l.ReconcileAll(at(30))

	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 30 {
		t.Errorf("main = %d, want 30", got)
	}
	v := voice(t, l, ledger.Period, "u1")
	if v.Total != 30 {
		t.Errorf("voice total = %d, want 30", v.Total)
	}
	if v.OngoingStart == nil || *v.OngoingStart != 30 {
		t.Errorf("voice anchor = %v, want 30", v.OngoingStart)
	}
}

func TestReconcileIgnoresBackwardsClock(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(100))
	l.ReconcileAll(at(90))
	l.ReconcileAll(at(110))

	acc := activity(t, l, ledger.AllTime, "u1", "Chess")
	if acc.Main != 10 {
		t.Errorf("main = %d, want 10", acc.Main)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	l := ledger.New(ledger.Config{})
	if got := l.StopActivity("u1", "Chess", at(50)); got != 0 {
		t.Errorf("StopActivity credited %d, want 0", got)
	}
	l.StopVoice("u1", at(50))
	d := l.Export(ledger.AllTime)
	if len(d.ActivityTimes) != 0 || len(d.VoiceTimes) != 0 {
		t.Errorf("stop created accounts: %+v", d)
	}

	l.StartActivity("u1", "Chess", at(0))
	l.StopActivity("u1", "Chess", at(10))
	l.StopActivity("u1", "Chess", at(20))
	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 10 {
		t.Errorf("main after duplicate stop = %d, want 10", got)
	}
}

func TestDoubleStartMovesAnchor(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(0))
	l.StartActivity("u1", "Chess", at(40))
	l.StopActivity("u1", "Chess", at(50))

	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 10 {
		t.Errorf("main = %d, want 10", got)
	}
}

func TestRolloverContinuity(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(0))
	l.StartVoice("u1", at(0))
	l.ReconcileAll(at(100))
	l.ResetPeriod(at(100))

	if got := activity(t, l, ledger.Period, "u1", "Chess").Main; got != 0 {
		t.Errorf("period main right after reset = %d, want 0", got)
	}
	if got := voice(t, l, ledger.Period, "u1").Total; got != 0 {
		t.Errorf("period voice right after reset = %d, want 0", got)
	}
	if l.PeriodStart() != 100 {
		t.Errorf("PeriodStart = %d, want 100", l.PeriodStart())
	}

	l.ReconcileAll(at(160))
	l.StopActivity("u1", "Chess", at(200))
	l.StopVoice("u1", at(200))

	all := activity(t, l, ledger.AllTime, "u1", "Chess").Main
	period := activity(t, l, ledger.Period, "u1", "Chess").Main
	if all != 200 {
		t.Errorf("all-time main = %d, want 200", all)
	}
	if period != 100 {
		t.Errorf("period main = %d, want 100", period)
	}
	if all-period != 100 {
		t.Errorf("pre-reset share = %d, want 100", all-period)
	}
	if got := voice(t, l, ledger.Period, "u1").Total; got != 100 {
		t.Errorf("period voice = %d, want 100", got)
	}
}

func TestResetWithoutReconcileKeepsPreResetTimeOutOfPeriod(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(0))
	l.ResetPeriod(at(50))
	l.StopActivity("u1", "Chess", at(80))

	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 80 {
		t.Errorf("all-time main = %d, want 80", got)
	}
	if got := activity(t, l, ledger.Period, "u1", "Chess").Main; got != 30 {
		t.Errorf("period main = %d, want 30", got)
	}
}

func TestStartupSanitization(t *testing.T) {
	stale := int64(10)
	all := ledger.NewDocument()
	all.ActivityTimes["u1"] = map[string]ledger.ActivityAccount{
		"Chess": {Main: 500, OngoingStart: &stale},
	}
	all.VoiceTimes["u1"] = ledger.VoiceAccount{Total: 70, OngoingStart: &stale}
	period := all.Clone()

	l := ledger.New(ledger.Config{})
	l.Import(all, period)
	l.Restore(ledger.Snapshot{}, at(10_000))
	l.ReconcileAll(at(20_000))

	for _, sel := range []ledger.Selector{ledger.AllTime, ledger.Period} {
		acc := activity(t, l, sel, "u1", "Chess")
		if acc.OngoingStart != nil {
			t.Errorf("%s activity anchor survived restore", sel)
		}
		if acc.Main != 500 {
			t.Errorf("%s main = %d, want 500", sel, acc.Main)
		}
		v := voice(t, l, sel, "u1")
		if v.OngoingStart != nil {
			t.Errorf("%s voice anchor survived restore", sel)
		}
		if v.Total != 70 {
			t.Errorf("%s voice total = %d, want 70", sel, v.Total)
		}
	}
}

func TestRestoreStartsSnapshotSessions(t *testing.T) {
	l := ledger.New(ledger.Config{})
	acts, vc := l.Restore(ledger.Snapshot{
		Activities: map[string][]ledger.Activity{
			"u1": {{Name: "Chess", Kind: ledger.KindPlaying}, {Name: "afk", Kind: ledger.KindCustom}},
		},
		Voice: map[string]string{"u1": "vc-1", "u2": ""},
	}, at(100))
	if acts != 1 || vc != 1 {
		t.Fatalf("Restore started %d/%d sessions, want 1/1", acts, vc)
	}

	l.ReconcileAll(at(130))
	if got := activity(t, l, ledger.Period, "u1", "Chess").Main; got != 30 {
		t.Errorf("main = %d, want 30", got)
	}
	if _, ok := l.Export(ledger.AllTime).ActivityTimes["u1"]["afk"]; ok {
		t.Error("custom status was tracked")
	}
	if l.InVoice("u2") {
		t.Error("u2 should not be in voice")
	}
}

func TestApplyActivityChange(t *testing.T) {
	l := ledger.New(ledger.Config{})
	chess := ledger.Activity{Name: "Chess", Kind: ledger.KindPlaying}
	music := ledger.Activity{Name: "Spotify", Kind: ledger.KindListening}

	started, stopped := l.ApplyActivityChange("u1", nil, []ledger.Activity{chess, music}, at(0))
	if len(started) != 2 || len(stopped) != 0 {
		t.Fatalf("started/stopped = %v/%v", started, stopped)
	}

	// Both run simultaneously and both accrue main.
	started, stopped = l.ApplyActivityChange("u1", []ledger.Activity{chess, music}, []ledger.Activity{music}, at(60))
	if len(started) != 0 || len(stopped) != 1 || stopped[0] != "Chess" {
		t.Fatalf("started/stopped = %v/%v", started, stopped)
	}
	l.ReconcileAll(at(90))

	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 60 {
		t.Errorf("Chess main = %d, want 60", got)
	}
	if got := activity(t, l, ledger.AllTime, "u1", "Spotify").Main; got != 90 {
		t.Errorf("Spotify main = %d, want 90", got)
	}

	active := l.ActiveActivities("u1")
	if len(active) != 1 || active[0].Name != "Spotify" {
		t.Errorf("ActiveActivities = %v, want [Spotify]", active)
	}
}

func TestApplyVoiceChange(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr string
		wantActive bool
		wantTotal  int64
	}{
		{"join", "", "a", true, 0},
		{"leave", "a", "", false, 50},
		{"switch", "a", "b", true, 50},
		{"same channel", "a", "a", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New(ledger.Config{})
			if tt.prev != "" {
				l.StartVoice("u1", at(0))
			}
			l.ApplyVoiceChange("u1", tt.prev, tt.curr, at(50))

			acc := voice(t, l, ledger.AllTime, "u1")
			if acc.Active() != tt.wantActive {
				t.Errorf("active = %v, want %v", acc.Active(), tt.wantActive)
			}
			if acc.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", acc.Total, tt.wantTotal)
			}
		})
	}
}

func TestChessScenario(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("A", "Chess", at(1000))
	l.ReconcileAll(at(1060))
	if got := activity(t, l, ledger.AllTime, "A", "Chess").Main; got != 60 {
		t.Fatalf("main after tick = %d, want 60", got)
	}

	l.StopActivity("A", "Chess", at(1100))
	acc := activity(t, l, ledger.AllTime, "A", "Chess")
	if acc.Main != 100 || acc.OngoingStart != nil {
		t.Fatalf("after stop main=%d anchor=%v, want 100/nil", acc.Main, acc.OngoingStart)
	}

	l.ReconcileAll(at(1200))
	board := l.Leaderboard(ledger.AllTime, 10, nil)
	if len(board) != 1 {
		t.Fatalf("leaderboard rows = %d, want 1", len(board))
	}
	if board[0].TotalMain != 100 || board[0].Activities[0].Name != "Chess" {
		t.Errorf("leaderboard row = %+v, want Chess 100s", board[0])
	}
}

func TestExportIsDeepCopy(t *testing.T) {
	l := ledger.New(ledger.Config{})
	l.StartActivity("u1", "Chess", at(0))

	d := l.Export(ledger.AllTime)
	*d.ActivityTimes["u1"]["Chess"].OngoingStart = 999
	l.ReconcileAll(at(10))

	if got := activity(t, l, ledger.AllTime, "u1", "Chess").Main; got != 10 {
		t.Errorf("main = %d, want 10 (export leaked a pointer)", got)
	}
}
