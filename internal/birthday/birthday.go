// Package birthday stores member birthdays and decides who to greet.
package birthday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"guildbot/internal/storage"
)

// StoreKey is where birthdays are stored.
const StoreKey = "birthdays.json"

const dateLayout = "01-02"

// ErrInvalidDate is returned for dates not in MM-DD form.
var ErrInvalidDate = errors.New("birthday must be a valid MM-DD date")

// Entry is a stored birthday, encoded as ["MM-DD", greeted].
type Entry struct {
	Date    string
	Greeted bool
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Date, e.Greeted})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("birthday entry: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Date); err != nil {
		return fmt.Errorf("birthday date: %w", err)
	}
	return json.Unmarshal(raw[1], &e.Greeted)
}

// ParseDate validates an MM-DD date. 02-29 is accepted.
func ParseDate(s string) (string, error) {
	// Year 2000 is a leap year, so Feb 29 parses.
	t, err := time.Parse("2006-"+dateLayout, "2000-"+s)
	if err != nil || len(s) != len(dateLayout) {
		return "", ErrInvalidDate
	}
	return t.Format(dateLayout), nil
}

// matches reports whether a birthday falls on day. Feb 29 birthdays are
// celebrated on Feb 28 outside leap years.
func matches(date string, day time.Time) bool {
	today := day.Format(dateLayout)
	if date == today {
		return true
	}
	return date == "02-29" && today == "02-28" && !isLeap(day.Year())
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Book maps user ids to birthdays.
type Book map[string]Entry

// Check returns the users whose birthday is on day and who have not been
// greeted yet. Greeted flags of other days are cleared so next year works.
func (b Book) Check(day time.Time) []string {
	var due []string
	for user, e := range b {
		switch {
		case matches(e.Date, day):
			if !e.Greeted {
				due = append(due, user)
			}
		case e.Greeted:
			e.Greeted = false
			b[user] = e
		}
	}
	sort.Strings(due)
	return due
}

// MarkGreeted records that user was greeted on day. It reports false when
// the user has no birthday on day.
func (b Book) MarkGreeted(user string, day time.Time) bool {
	e, ok := b[user]
	if !ok || !matches(e.Date, day) {
		return false
	}
	e.Greeted = true
	b[user] = e
	return true
}

// Registry is the store-backed birthday list.
type Registry struct {
	mu    sync.Mutex
	store storage.Store
}

// NewRegistry creates a registry over store.
func NewRegistry(store storage.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) load(ctx context.Context) (Book, error) {
	b := make(Book)
	err := storage.LoadJSON(ctx, r.store, StoreKey, &b)
	if errors.Is(err, storage.ErrNotFound) {
		return make(Book), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load birthdays: %w", err)
	}
	return b, nil
}

func (r *Registry) save(ctx context.Context, b Book) error {
	if err := storage.SaveJSON(ctx, r.store, StoreKey, b); err != nil {
		return fmt.Errorf("save birthdays: %w", err)
	}
	return nil
}

// Set stores a user's birthday and returns the normalized date.
func (r *Registry) Set(ctx context.Context, userID, date string) (string, error) {
	normalized, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.load(ctx)
	if err != nil {
		return "", err
	}
	b[userID] = Entry{Date: normalized}
	return normalized, r.save(ctx, b)
}

// Remove deletes a user's birthday and reports whether one was stored.
func (r *Registry) Remove(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := b[userID]; !ok {
		return false, nil
	}
	delete(b, userID)
	return true, r.save(ctx, b)
}

// Due runs Check for day and saves the cleared flags. Callers mark each
// user with MarkGreeted once the greeting went out.
func (r *Registry) Due(ctx context.Context, day time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	due := b.Check(day)
	return due, r.save(ctx, b)
}

// MarkGreeted stores that user got their greeting for day.
func (r *Registry) MarkGreeted(ctx context.Context, user string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.load(ctx)
	if err != nil {
		return err
	}
	if !b.MarkGreeted(user, day) {
		return nil
	}
	return r.save(ctx, b)
}
