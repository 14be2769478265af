package models

import "time"

// ArchivedPeriod is one finished period stored in the archive
type ArchivedPeriod struct {
	ID          int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	Trigger     string
	BackupKey   string
	Users       int
	MainSeconds int64
}

// PeriodActivity is one user's activity figures for an archived period
type PeriodActivity struct {
	UserID           string
	ActivityName     string
	MainSeconds      int64
	DuplicateSeconds int64
}

// PeriodVoice is one user's voice figure for an archived period
type PeriodVoice struct {
	UserID       string
	TotalSeconds int64
}

// ActivityHours is the archived running total of an activity for a user
type ActivityHours struct {
	UserID       string
	ActivityName string
	TotalSeconds int64
}

// VoiceHours is the archived running total of voice time for a user
type VoiceHours struct {
	UserID       string
	TotalSeconds int64
}
