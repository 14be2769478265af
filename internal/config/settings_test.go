package config

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleSettings = `{
	// command prefix
	"PREFIX": "!",
	"LOG_CHANNEL_ID": 1234567890123456789,
	"CONFIG_CHANNEL_ID": "42",
	"activity_blacklist": ["Spotify", "Visual Studio Code"],
	"leaderboard_limit": 5,
	"TRIGGER_MESSAGE": "nope",
	"debug": false,
}`

func mustParse(t *testing.T) *Settings {
	t.Helper()
	s, err := ParseSettings([]byte(sampleSettings))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	return s
}

func TestParseSettingsAccessors(t *testing.T) {
	s := mustParse(t)

	if got := s.ID(KeyLogChannel); got != "1234567890123456789" {
		t.Errorf("ID = %q, want full precision snowflake", got)
	}
	if got := s.ID(KeyConfigChannel); got != "42" {
		t.Errorf("ID = %q, want 42", got)
	}
	if got := s.LeaderboardLimit(); got != 5 {
		t.Errorf("LeaderboardLimit = %d, want 5", got)
	}
	if got := s.Prefix(); got != "!" {
		t.Errorf("Prefix = %q", got)
	}
	want := []string{"Spotify", "Visual Studio Code"}
	if got := s.Blacklist(); !reflect.DeepEqual(got, want) {
		t.Errorf("Blacklist = %v, want %v", got, want)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s, err := ParseSettings([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Prefix() != DefaultPrefix {
		t.Errorf("Prefix = %q, want default", s.Prefix())
	}
	if s.LeaderboardLimit() != DefaultLeaderboardLimit {
		t.Errorf("LeaderboardLimit = %d, want default", s.LeaderboardLimit())
	}
	day, hour, loc, err := s.PeriodBoundary()
	if err != nil {
		t.Fatalf("PeriodBoundary: %v", err)
	}
	if day != time.Sunday || hour != 0 || loc.String() != "Europe/Berlin" {
		t.Errorf("PeriodBoundary = %v %d %v", day, hour, loc)
	}
}

func TestSettingsSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    string
		wantErr error
	}{
		{name: "string", key: "TRIGGER_MESSAGE", value: "hello there", want: "hello there"},
		{name: "number keeps type", key: "leaderboard_limit", value: "15", want: "15"},
		{name: "bool", key: "debug", value: "true", want: "true"},
		{name: "unknown key", key: "missing", value: "x", wantErr: ErrUnknownKey},
		{name: "list key", key: "activity_blacklist", value: "x", wantErr: ErrIsList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t)
			err := s.Set(tt.key, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Set error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && s.String(tt.key) != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.key, s.String(tt.key), tt.want)
			}
		})
	}
}

func TestSettingsRejectsInvalidValues(t *testing.T) {
	doc := `{"leaderboard_limit": 5, "period_timezone": "UTC", "period_hour": 6, "activity_blacklist": []}`
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "word for number", key: KeyLeaderboardLimit, value: "ten", wantErr: ErrWrongType},
		{name: "fraction for integer", key: KeyLeaderboardLimit, value: "1.5"},
		{name: "hour out of range", key: KeyPeriodHour, value: "24"},
		{name: "unknown timezone", key: KeyPeriodTimezone, value: "Mars/Olympus_Mons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			s, err := ParseSettings([]byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			s.path = path
			before := s.String(tt.key)

			err = s.Set(tt.key, tt.value)
			if err == nil {
				t.Fatalf("Set(%q, %q) accepted an invalid value", tt.key, tt.value)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Set error = %v, want %v", err, tt.wantErr)
			}
			if got := s.String(tt.key); got != before {
				t.Errorf("%s = %q after rejected Set, want %q", tt.key, got, before)
			}

			// What is saved must still load and validate on the next start.
			if err := s.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}
			reloaded, err := LoadSettings(path)
			if err != nil {
				t.Fatalf("LoadSettings: %v", err)
			}
			if err := reloaded.Validate(); err != nil {
				t.Errorf("Validate after reload: %v", err)
			}
		})
	}
}

func TestSettingsRejectsUnknownWeekday(t *testing.T) {
	s, err := ParseSettings([]byte(`{"activity_blacklist": ["Spotify"], "period_weekday": "sun"}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyPeriodWeekday, "someday"); err == nil {
		t.Fatal("Set accepted an unknown weekday")
	}
	if got := s.String(KeyPeriodWeekday); got != "sun" {
		t.Errorf("period_weekday = %q, want sun", got)
	}
	if err := s.AddToList(KeyActivityBlacklist, "YouTube"); err != nil {
		t.Fatalf("AddToList: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSettingsListEditing(t *testing.T) {
	s := mustParse(t)

	if err := s.AddToList(KeyActivityBlacklist, "Spotify"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("AddToList duplicate = %v, want ErrDuplicate", err)
	}
	if err := s.AddToList(KeyActivityBlacklist, "YouTube"); err != nil {
		t.Fatalf("AddToList: %v", err)
	}
	if err := s.RemoveFromList(KeyActivityBlacklist, "Spotify"); err != nil {
		t.Fatalf("RemoveFromList: %v", err)
	}
	if err := s.RemoveFromList(KeyActivityBlacklist, "Spotify"); !errors.Is(err, ErrMissing) {
		t.Errorf("RemoveFromList missing = %v, want ErrMissing", err)
	}
	if err := s.AddToList(KeyPrefix, "x"); !errors.Is(err, ErrNotList) {
		t.Errorf("AddToList on scalar = %v, want ErrNotList", err)
	}

	want := []string{"Visual Studio Code", "YouTube"}
	if got := s.Blacklist(); !reflect.DeepEqual(got, want) {
		t.Errorf("Blacklist = %v, want %v", got, want)
	}

	if err := s.SetList(KeyActivityBlacklist, `["a", "b"]`); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	if got := s.Blacklist(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Blacklist after SetList = %v", got)
	}
	if err := s.SetList(KeyActivityBlacklist, "not a list"); err == nil {
		t.Error("SetList accepted a non-list literal")
	}
}

func TestSettingsSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.jsonc")
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings missing file: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("Keys = %v, want empty", s.Keys())
	}

	s = mustParse(t)
	s.path = path
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got := reloaded.ID(KeyLogChannel); got != "1234567890123456789" {
		t.Errorf("reloaded ID = %q", got)
	}
	data, err := reloaded.JSON()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "//") {
		t.Errorf("saved settings kept comments: %s", data)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "empty", doc: `{}`},
		{name: "custom boundary", doc: `{"period_weekday": "mon", "period_hour": 6, "period_timezone": "UTC"}`},
		{name: "bad weekday", doc: `{"period_weekday": "someday"}`, wantErr: true},
		{name: "bad hour", doc: `{"period_hour": 24}`, wantErr: true},
		{name: "bad timezone", doc: `{"period_timezone": "Mars/Olympus"}`, wantErr: true},
		{name: "blacklist not list", doc: `{"activity_blacklist": "Spotify"}`, wantErr: true},
		{name: "limit not int", doc: `{"leaderboard_limit": "ten"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSettings([]byte(tt.doc))
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
