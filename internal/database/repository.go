package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guildbot/internal/models"
	"guildbot/internal/tracker"
)

// Repository stores finished periods and running totals across them
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ArchivePeriod records a finished period and adds its figures to the
// running totals. Archiving the same period end twice is a no-op.
func (r *Repository) ArchivePeriod(ctx context.Context, report tracker.Report) error {
	activities, voice := flatten(report)

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var periodID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO periods (period_start, period_end, trigger, backup_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (period_end) DO NOTHING
		RETURNING id`,
		report.PeriodStart, report.PeriodEnd, report.Trigger, report.BackupKey).Scan(&periodID)
	if errors.Is(err, sql.ErrNoRows) {
		r.db.logger.Info().Time("period_end", report.PeriodEnd).Msg("Period already archived")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert period: %w", err)
	}

	for _, a := range activities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO period_activity_seconds (period_id, user_id, activity_name, main_seconds, duplicate_seconds)
			VALUES ($1, $2, $3, $4, $5)`,
			periodID, a.UserID, a.ActivityName, a.MainSeconds, a.DuplicateSeconds); err != nil {
			return fmt.Errorf("failed to add period activity: %w", err)
		}
		if a.MainSeconds == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activity_hours (user_id, activity_name, total_seconds)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, activity_name) DO UPDATE SET total_seconds = activity_hours.total_seconds + EXCLUDED.total_seconds`,
			a.UserID, a.ActivityName, a.MainSeconds); err != nil {
			return fmt.Errorf("failed to add activity seconds: %w", err)
		}
	}

	for _, v := range voice {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO period_voice_seconds (period_id, user_id, total_seconds)
			VALUES ($1, $2, $3)`,
			periodID, v.UserID, v.TotalSeconds); err != nil {
			return fmt.Errorf("failed to add period voice: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO voice_hours (user_id, total_seconds)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET total_seconds = voice_hours.total_seconds + EXCLUDED.total_seconds`,
			v.UserID, v.TotalSeconds); err != nil {
			return fmt.Errorf("failed to add voice seconds: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	r.db.logger.Info().
		Int64("period_id", periodID).
		Int("activities", len(activities)).
		Int("voice", len(voice)).
		Msg("Period archived")
	return nil
}

// RecentPeriods lists the latest archived periods, newest first
func (r *Repository) RecentPeriods(ctx context.Context, limit int) ([]models.ArchivedPeriod, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT p.id, p.period_start, p.period_end, p.trigger, p.backup_key,
			COUNT(DISTINCT a.user_id), COALESCE(SUM(a.main_seconds), 0)
		FROM periods p
		LEFT JOIN period_activity_seconds a ON a.period_id = p.id
		GROUP BY p.id
		ORDER BY p.period_end DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent periods: %w", err)
	}
	defer rows.Close()

	var periods []models.ArchivedPeriod
	for rows.Next() {
		var p models.ArchivedPeriod
		if err := rows.Scan(&p.ID, &p.PeriodStart, &p.PeriodEnd, &p.Trigger, &p.BackupKey, &p.Users, &p.MainSeconds); err != nil {
			r.db.logger.Error().Err(err).Msg("Error scanning period row")
			continue
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// GetTopActivities gets a user's top archived activities
func (r *Repository) GetTopActivities(ctx context.Context, userID string, limit int) ([]models.ActivityHours, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT activity_name, total_seconds FROM activity_hours WHERE user_id = $1 ORDER BY total_seconds DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top activities: %w", err)
	}
	defer rows.Close()

	var activities []models.ActivityHours
	for rows.Next() {
		var activity models.ActivityHours
		if err := rows.Scan(&activity.ActivityName, &activity.TotalSeconds); err != nil {
			r.db.logger.Error().Err(err).Msg("Error scanning activity row")
			continue
		}
		activity.UserID = userID
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// GetVoiceHours gets a user's archived voice total
func (r *Repository) GetVoiceHours(ctx context.Context, userID string) (models.VoiceHours, error) {
	v := models.VoiceHours{UserID: userID}
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT total_seconds FROM voice_hours WHERE user_id = $1", userID).Scan(&v.TotalSeconds)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("failed to get voice hours: %w", err)
	}
	return v, nil
}

// flatten turns a report into table rows, dropping empty figures.
func flatten(report tracker.Report) ([]models.PeriodActivity, []models.PeriodVoice) {
	var activities []models.PeriodActivity
	for _, s := range report.Activities {
		for _, a := range s.Activities {
			if a.Main == 0 && a.Duplicate == 0 {
				continue
			}
			activities = append(activities, models.PeriodActivity{
				UserID:           s.UserID,
				ActivityName:     a.Name,
				MainSeconds:      a.Main,
				DuplicateSeconds: a.Duplicate,
			})
		}
	}
	var voice []models.PeriodVoice
	for _, v := range report.Voice {
		if v.Total <= 0 {
			continue
		}
		voice = append(voice, models.PeriodVoice{UserID: v.UserID, TotalSeconds: v.Total})
	}
	return activities, voice
}
