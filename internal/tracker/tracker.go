// Package tracker owns the ledger at runtime: it serializes event handling,
// runs the reconcile and autosave loops and rolls the period over.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"guildbot/internal/backup"
	"guildbot/internal/ledger"
	"guildbot/internal/metrics"
	"guildbot/internal/storage"
)

const (
	DefaultUpdateInterval      = 10 * time.Second
	DefaultSaveInterval        = 60 * time.Second
	DefaultPeriodCheckInterval = time.Hour
)

// Report is the final state of a finished period.
type Report struct {
	Trigger     string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Activities  []ledger.Standing
	Voice       []ledger.VoiceStanding
	BackupKey   string
}

// Reporter publishes a finished period.
type Reporter interface {
	PublishReport(ctx context.Context, r Report) error
}

// Archiver keeps a permanent record of finished periods.
type Archiver interface {
	ArchivePeriod(ctx context.Context, r Report) error
}

// Config holds tracker configuration
type Config struct {
	Blacklist           []string
	UpdateInterval      time.Duration
	SaveInterval        time.Duration
	PeriodCheckInterval time.Duration
	Schedule            Schedule
}

// Tracker is the concurrency-safe owner of a ledger.
type Tracker struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	voice  map[string]string // user -> voice channel

	saveMu sync.Mutex
	store  storage.Store

	cfg      Config
	now      func() time.Time
	reporter Reporter
	archiver Archiver
	logger   zerolog.Logger
}

// New creates a tracker with an empty ledger. Call Load before use.
func New(store storage.Store, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.PeriodCheckInterval <= 0 {
		cfg.PeriodCheckInterval = DefaultPeriodCheckInterval
	}
	if cfg.Schedule.Location == nil {
		cfg.Schedule = DefaultSchedule()
	}

	return &Tracker{
		ledger: ledger.New(ledger.Config{Blacklist: cfg.Blacklist}),
		voice:  make(map[string]string),
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// SetReporter sets where finished periods are published.
func (t *Tracker) SetReporter(r Reporter) { t.reporter = r }

// SetArchiver sets where finished periods are archived.
func (t *Tracker) SetArchiver(a Archiver) { t.archiver = a }

// Schedule returns the period boundary schedule.
func (t *Tracker) Schedule() Schedule { return t.cfg.Schedule }

// Load reads both books from the store and drops every persisted session
// anchor, since nothing is known about what happened while offline. A period
// whose boundary passed while the bot was down is rolled over without being
// published.
func (t *Tracker) Load(ctx context.Context) error {
	allTime, period, err := LoadDocuments(ctx, t.store, t.logger)
	if err != nil {
		return err
	}

	now := t.now()
	t.mu.Lock()
	t.ledger.Import(allTime, period)
	cleared := t.ledger.ClearSessions()
	t.voice = make(map[string]string)
	if t.ledger.PeriodStart() == 0 {
		t.ledger.SetPeriodStart(t.cfg.Schedule.LastBoundary(now))
	}
	periodStart := time.Unix(t.ledger.PeriodStart(), 0)
	t.mu.Unlock()

	t.logger.Info().
		Int("users", len(allTime.ActivityTimes)).
		Int("voice_users", len(allTime.VoiceTimes)).
		Int("stale_sessions", cleared).
		Time("period_start", periodStart).
		Msg("Ledger loaded")

	if boundary := t.cfg.Schedule.LastBoundary(now); periodStart.Before(boundary) {
		t.logger.Warn().
			Time("period_start", periodStart).
			Time("boundary", boundary).
			Msg("Missed period boundary while offline, rolling over")
		if _, _, err := t.rollover(ctx, boundary, "catch-up", false); err != nil {
			return fmt.Errorf("catch-up rollover: %w", err)
		}
	}
	return nil
}

// Restore starts exactly the sessions in snap, discarding any others. Time
// running sessions accrued before the snapshot is credited first.
func (t *Tracker) Restore(snap ledger.Snapshot) (activities, voice int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.ledger.ReconcileAll(now)
	activities, voice = t.ledger.Restore(snap, now)
	t.voice = make(map[string]string, len(snap.Voice))
	for user, channel := range snap.Voice {
		if channel != "" {
			t.voice[user] = channel
		}
	}
	t.updateGauges()

	t.logger.Info().
		Int("activities", activities).
		Int("voice", voice).
		Msg("Sessions restored from snapshot")
	return activities, voice
}

// OnActivityChanged applies a user's current presence activities.
func (t *Tracker) OnActivityChanged(user string, current []ledger.Activity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.ledger.ActiveActivities(user)
	started, stopped := t.ledger.ApplyActivityChange(user, prev, current, t.now())
	if len(started) == 0 && len(stopped) == 0 {
		return
	}
	t.updateGauges()
	t.logger.Debug().
		Str("user_id", user).
		Strs("started", started).
		Strs("stopped", stopped).
		Msg("Activity change")
}

// OnVoiceStateChanged applies a user's current voice channel; an empty
// channel means disconnected.
func (t *Tracker) OnVoiceStateChanged(user, channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.voice[user]
	if prev == channel {
		return
	}
	t.ledger.ApplyVoiceChange(user, prev, channel, t.now())
	if channel == "" {
		delete(t.voice, user)
	} else {
		t.voice[user] = channel
	}
	t.updateGauges()
	t.logger.Debug().
		Str("user_id", user).
		Str("from", prev).
		Str("to", channel).
		Msg("Voice change")
}

// SetBlacklist changes which activities count as duplicate. Time accrued so
// far keeps its classification.
func (t *Tracker) SetBlacklist(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	t.ledger.SetBlacklist(names)
	t.logger.Info().Strs("blacklist", t.ledger.Blacklist().Names()).Msg("Blacklist updated")
}

// Tick credits every running session up to now.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	metrics.ReconcileTicks.Inc()
	t.updateGauges()
}

// Flush writes both books to the store.
func (t *Tracker) Flush(ctx context.Context) error {
	// Writes are serialized so an older export never lands last.
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	allTime := t.ledger.Export(ledger.AllTime)
	period := t.ledger.Export(ledger.Period)
	t.mu.Unlock()

	if err := saveDocuments(ctx, t.store, allTime, period); err != nil {
		metrics.LedgerSaveFailures.Inc()
		return fmt.Errorf("save ledger: %w", err)
	}
	metrics.LedgerSaves.Inc()
	return nil
}

// Leaderboard reconciles and ranks the selected book.
func (t *Tracker) Leaderboard(sel ledger.Selector, topN int, known func(string) bool) []ledger.Standing {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	return t.ledger.Leaderboard(sel, topN, known)
}

// VoiceLeaderboard reconciles and ranks the selected book's voice totals.
func (t *Tracker) VoiceLeaderboard(sel ledger.Selector, topN int, known func(string) bool) []ledger.VoiceStanding {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	return t.ledger.VoiceLeaderboard(sel, topN, known)
}

// Stats reconciles and returns one user's all-time figures, running
// sessions included.
func (t *Tracker) Stats(user string) (ledger.Standing, ledger.VoiceAccount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	return t.ledger.UserStats(user)
}

// ActiveActivities returns the user's running activity sessions.
func (t *Tracker) ActiveActivities(user string) []ledger.Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.ActiveActivities(user)
}

// Export returns a reconciled copy of the selected book.
func (t *Tracker) Export(sel ledger.Selector) ledger.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.ReconcileAll(t.now())
	return t.ledger.Export(sel)
}

// Rollover closes the current period now: it backs up and reports the
// period book, then resets it.
func (t *Tracker) Rollover(ctx context.Context, publish bool) (Report, error) {
	report, _, err := t.rollover(ctx, t.now(), "manual", publish)
	return report, err
}

// rollover closes the period that ended at boundary. Scheduled and catch-up
// rollovers are skipped when the period already started at or after the
// boundary. When the backup cannot be written the period stays open.
func (t *Tracker) rollover(ctx context.Context, boundary time.Time, trigger string, publish bool) (Report, bool, error) {
	t.mu.Lock()
	if trigger != "manual" && t.ledger.PeriodStart() >= boundary.Unix() {
		t.mu.Unlock()
		return Report{}, false, nil
	}

	// Sessions are credited to the closing period up to the reset itself,
	// which can be later than the boundary.
	now := t.now()
	t.ledger.ReconcileAll(now)
	period := t.ledger.Export(ledger.Period)
	report := Report{
		Trigger:     trigger,
		PeriodStart: time.Unix(period.PeriodStart, 0),
		PeriodEnd:   now,
		Activities:  t.ledger.Leaderboard(ledger.Period, 0, nil),
		Voice:       t.ledger.VoiceLeaderboard(ledger.Period, 0, nil),
	}

	key, err := backup.Write(ctx, t.store, period, boundary.In(t.cfg.Schedule.location()))
	if err != nil {
		t.mu.Unlock()
		metrics.LedgerSaveFailures.Inc()
		return Report{}, false, fmt.Errorf("period backup: %w", err)
	}
	report.BackupKey = key

	t.ledger.ResetPeriod(now)
	t.ledger.SetPeriodStart(now)
	t.mu.Unlock()

	metrics.Rollovers.WithLabelValues(trigger).Inc()
	t.logger.Info().
		Str("trigger", trigger).
		Str("backup", report.BackupKey).
		Time("period_start", report.PeriodStart).
		Time("period_end", report.PeriodEnd).
		Int("users", len(report.Activities)).
		Msg("Period rolled over")

	if err := t.Flush(ctx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to save after rollover")
	}

	if t.archiver != nil {
		if err := t.archiver.ArchivePeriod(ctx, report); err != nil {
			t.logger.Error().Err(err).Msg("Failed to archive period")
		}
	}
	if publish && t.reporter != nil {
		if err := t.reporter.PublishReport(ctx, report); err != nil {
			return report, true, fmt.Errorf("publish report: %w", err)
		}
	}
	return report, true, nil
}

// CheckBoundary rolls over when a boundary has passed since the period
// began. It reports whether a rollover happened.
func (t *Tracker) CheckBoundary(ctx context.Context) (bool, error) {
	_, rolled, err := t.rollover(ctx, t.cfg.Schedule.LastBoundary(t.now()), "scheduled", true)
	return rolled, err
}

// Run drives the reconcile, autosave and boundary loops until ctx is
// cancelled, then reconciles and saves one last time.
func (t *Tracker) Run(ctx context.Context) error {
	update := time.NewTicker(t.cfg.UpdateInterval)
	defer update.Stop()
	save := time.NewTicker(t.cfg.SaveInterval)
	defer save.Stop()
	period := time.NewTicker(t.cfg.PeriodCheckInterval)
	defer period.Stop()

	t.logger.Info().
		Dur("update_interval", t.cfg.UpdateInterval).
		Dur("save_interval", t.cfg.SaveInterval).
		Time("next_boundary", t.cfg.Schedule.NextBoundary(t.now())).
		Msg("Tracker started")

	for {
		select {
		case <-ctx.Done():
			t.Tick()
			// The run context is gone; the final save gets its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := t.Flush(flushCtx); err != nil {
				return err
			}
			t.logger.Info().Msg("Tracker stopped, ledger saved")
			return nil
		case <-update.C:
			t.Tick()
		case <-save.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.Error().Err(err).Msg("Autosave failed, keeping state in memory")
			}
		case <-period.C:
			if _, err := t.CheckBoundary(ctx); err != nil {
				t.logger.Error().Err(err).Msg("Period rollover failed")
			}
		}
	}
}

// must hold t.mu
func (t *Tracker) updateGauges() {
	activities, voice := t.ledger.ActiveCounts()
	metrics.ActiveActivitySessions.Set(float64(activities))
	metrics.ActiveVoiceSessions.Set(float64(voice))
}
