package tracker

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestScheduleBoundaries(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	sunday := Schedule{Weekday: time.Sunday, Location: berlin}
	monday6 := Schedule{Weekday: time.Monday, Hour: 6, Location: time.UTC}

	tests := []struct {
		name     string
		schedule Schedule
		now      time.Time
		last     time.Time
		next     time.Time
	}{
		{
			name:     "midweek",
			schedule: sunday,
			now:      time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			last:     time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC),
			next:     time.Date(2024, 1, 13, 23, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly on boundary",
			schedule: sunday,
			now:      time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC),
			last:     time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC),
			next:     time.Date(2024, 1, 13, 23, 0, 0, 0, time.UTC),
		},
		{
			name:     "sunday in UTC but already monday in berlin is not",
			schedule: sunday,
			now:      time.Date(2024, 1, 6, 22, 30, 0, 0, time.UTC),
			last:     time.Date(2023, 12, 30, 23, 0, 0, 0, time.UTC),
			next:     time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC),
		},
		{
			name:     "across daylight saving change",
			schedule: sunday,
			now:      time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
			last:     time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC),
			next:     time.Date(2024, 4, 6, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "same weekday before the hour",
			schedule: monday6,
			now:      time.Date(2024, 1, 8, 5, 59, 0, 0, time.UTC),
			last:     time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
			next:     time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.LastBoundary(tt.now); !got.Equal(tt.last) {
				t.Errorf("LastBoundary = %v, want %v", got.UTC(), tt.last)
			}
			if got := tt.schedule.NextBoundary(tt.now); !got.Equal(tt.next) {
				t.Errorf("NextBoundary = %v, want %v", got.UTC(), tt.next)
			}
		})
	}
}
