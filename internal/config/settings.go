package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tailscale/hujson"
)

// Well-known settings keys.
const (
	KeyPrefix            = "PREFIX"
	KeyLogChannel        = "LOG_CHANNEL_ID"
	KeyErrorChannel      = "ERROR_CHANNEL_ID"
	KeyErrorUser         = "ERROR_USER_ID"
	KeyAdminUser         = "ADMIN_USER_ID"
	KeyActivityChannel   = "ACTIVITY_CHANNEL_ID"
	KeyBirthdayChannel   = "BIRTHDAY_CHANNEL_ID"
	KeyBirthdayMessage   = "BIRTHDAY_MESSAGE"
	KeyCountingChannel   = "COUNTING_GAME_CHANNEL_ID"
	KeyRoleChannel       = "ROLE_CHANNEL_ID"
	KeyConfigChannel     = "CONFIG_CHANNEL_ID"
	KeyTriggerWord       = "trigger_word"
	KeyTriggerMessage    = "TRIGGER_MESSAGE"
	KeyActivityBlacklist = "activity_blacklist"
	KeyLeaderboardLimit  = "leaderboard_limit"
	KeyPeriodWeekday     = "period_weekday"
	KeyPeriodHour        = "period_hour"
	KeyPeriodTimezone    = "period_timezone"
)

const (
	DefaultPrefix           = "!"
	DefaultLeaderboardLimit = 10
	DefaultPeriodTimezone   = "Europe/Berlin"
)

var (
	ErrUnknownKey = errors.New("key does not exist")
	ErrNotList    = errors.New("key is not a list")
	ErrIsList     = errors.New("key is a list")
	ErrDuplicate  = errors.New("value already in list")
	ErrMissing    = errors.New("value not in list")
	ErrWrongType  = errors.New("value has the wrong type")
)

// Settings is the guild-level bot configuration, editable at runtime and
// persisted as JSON. Comments in the file are accepted on load and dropped
// on save.
type Settings struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// LoadSettings parses a JSONC settings file. A missing file yields empty
// settings bound to path.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Settings{path: path, values: make(map[string]any)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// ParseSettings parses JSONC bytes into unbound settings.
func ParseSettings(data []byte) (*Settings, error) {
	ast, err := hujson.Parse(data)
	if err != nil {
		return nil, err
	}
	ast.Standardize()
	data = ast.Pack()

	values := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	// Snowflake ids do not survive float64.
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return &Settings{values: values}, nil
}

// Save writes the settings back as indented JSON.
func (s *Settings) Save() error {
	data, err := s.JSON()
	if err != nil {
		return err
	}
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// JSON renders the settings as indented JSON.
func (s *Settings) JSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.values); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Keys returns every key, sorted.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value for key.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set replaces a scalar value. Numbers and booleans keep their type.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.values[key]
	if !ok {
		return ErrUnknownKey
	}
	switch old.(type) {
	case []any:
		return ErrIsList
	case json.Number:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%w: %s must be a number", ErrWrongType, key)
		}
		return s.commit(key, json.Number(value))
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", ErrWrongType, key)
		}
		return s.commit(key, b)
	}
	return s.commit(key, value)
}

// commit stores value at key unless the result fails validation, in which
// case the previous value is kept. Must hold s.mu.
func (s *Settings) commit(key string, value any) error {
	old := s.values[key]
	s.values[key] = value
	if err := s.validate(); err != nil {
		s.values[key] = old
		return err
	}
	return nil
}

// SetList replaces a list value with a JSON array literal.
func (s *Settings) SetList(key, literal string) error {
	var items []any
	dec := json.NewDecoder(strings.NewReader(literal))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("expected a JSON list: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireList(key); err != nil {
		return err
	}
	return s.commit(key, items)
}

// AddToList appends value to a list unless it is already present.
func (s *Settings) AddToList(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireList(key); err != nil {
		return err
	}
	list := s.values[key].([]any)
	if indexOf(list, value) >= 0 {
		return ErrDuplicate
	}
	out := make([]any, 0, len(list)+1)
	out = append(out, list...)
	return s.commit(key, append(out, value))
}

// RemoveFromList removes value from a list.
func (s *Settings) RemoveFromList(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireList(key); err != nil {
		return err
	}
	list := s.values[key].([]any)
	i := indexOf(list, value)
	if i < 0 {
		return ErrMissing
	}
	out := make([]any, 0, len(list)-1)
	out = append(out, list[:i]...)
	return s.commit(key, append(out, list[i+1:]...))
}

func (s *Settings) requireList(key string) error {
	v, ok := s.values[key]
	if !ok {
		return ErrUnknownKey
	}
	if _, ok := v.([]any); !ok {
		return ErrNotList
	}
	return nil
}

func indexOf(list []any, value string) int {
	for i, item := range list {
		if stringify(item) == value {
			return i
		}
	}
	return -1
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// String returns the value for key as text, or "" if absent.
func (s *Settings) String(key string) string {
	v, _ := s.Get(key)
	return stringify(v)
}

// str is String without locking.
func (s *Settings) str(key string) string {
	return stringify(s.values[key])
}

// ID returns a Discord snowflake stored as a number or a string.
func (s *Settings) ID(key string) string {
	return strings.TrimSpace(s.String(key))
}

// Int returns the integer value for key, or def when absent or invalid.
func (s *Settings) Int(key string, def int) int {
	n, err := strconv.Atoi(s.String(key))
	if err != nil {
		return def
	}
	return n
}

// Strings returns a list value as text items.
func (s *Settings) Strings(key string) []string {
	v, _ := s.Get(key)
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, stringify(item))
	}
	return out
}

// Prefix returns the command prefix.
func (s *Settings) Prefix() string {
	if p := s.String(KeyPrefix); p != "" {
		return p
	}
	return DefaultPrefix
}

// LeaderboardLimit returns how many rows a leaderboard shows.
func (s *Settings) LeaderboardLimit() int {
	if n := s.Int(KeyLeaderboardLimit, DefaultLeaderboardLimit); n > 0 {
		return n
	}
	return DefaultLeaderboardLimit
}

// Blacklist returns the activity names whose time counts as duplicate.
func (s *Settings) Blacklist() []string {
	return s.Strings(KeyActivityBlacklist)
}

// PeriodBoundary returns the weekday, hour and location a period ends on.
// The default is Sunday 00:00 Europe/Berlin.
func (s *Settings) PeriodBoundary() (time.Weekday, int, *time.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.periodBoundary()
}

func (s *Settings) periodBoundary() (time.Weekday, int, *time.Location, error) {
	weekday := time.Sunday
	if name := s.str(KeyPeriodWeekday); name != "" {
		w, err := ParseWeekday(name)
		if err != nil {
			return 0, 0, nil, err
		}
		weekday = w
	}

	hour := 0
	if v := s.str(KeyPeriodHour); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, nil, &ConfigError{Field: KeyPeriodHour, Message: KeyPeriodHour + " must be an integer"}
		}
		hour = n
	}
	if hour < 0 || hour > 23 {
		return 0, 0, nil, &ConfigError{Field: KeyPeriodHour, Message: fmt.Sprintf("%s must be 0-23, got %d", KeyPeriodHour, hour)}
	}

	tz := s.str(KeyPeriodTimezone)
	if tz == "" {
		tz = DefaultPeriodTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, 0, nil, &ConfigError{Field: KeyPeriodTimezone, Message: err.Error()}
	}
	return weekday, hour, loc, nil
}

// ParseWeekday accepts English weekday names and their three letter forms.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, nil
		}
	}
	return 0, &ConfigError{Field: KeyPeriodWeekday, Message: fmt.Sprintf("unknown weekday %q", name)}
}

// Validate checks the keys the bot depends on.
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validate()
}

func (s *Settings) validate() error {
	if _, _, _, err := s.periodBoundary(); err != nil {
		return err
	}
	if v, ok := s.values[KeyActivityBlacklist]; ok {
		if _, isList := v.([]any); !isList {
			return &ConfigError{Field: KeyActivityBlacklist, Message: KeyActivityBlacklist + " must be a list"}
		}
	}
	if v, ok := s.values[KeyLeaderboardLimit]; ok {
		if _, err := strconv.Atoi(stringify(v)); err != nil {
			return &ConfigError{Field: KeyLeaderboardLimit, Message: KeyLeaderboardLimit + " must be an integer"}
		}
	}
	return nil
}
