// Package counting implements the channel counting game.
package counting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"guildbot/internal/storage"
)

// StateKey is where the game state is stored.
const StateKey = "counter.json"

// State is the persisted game.
type State struct {
	ChannelID     string `json:"channel_id"`
	CurrentNumber int    `json:"current_number"`
	LastUser      string `json:"last_user"`
	Highscore     int    `json:"highscore"`
}

// Outcome is what a message did to the game.
type Outcome int

const (
	Ignored    Outcome = iota // not in the counting channel
	DoubleTurn                // same user twice in a row; count kept
	Correct                   // next number
	Wrong                     // a number, but not the next one; count reset
	NotANumber                // anything else; count reset
)

func (o Outcome) String() string {
	switch o {
	case DoubleTurn:
		return "double-turn"
	case Correct:
		return "correct"
	case Wrong:
		return "wrong"
	case NotANumber:
		return "not-a-number"
	default:
		return "ignored"
	}
}

// Broke reports whether the outcome reset the count.
func (o Outcome) Broke() bool { return o == Wrong || o == NotANumber }

// Apply advances the state for one message.
func (s *State) Apply(channelID, userID, content string) Outcome {
	if s.ChannelID == "" || channelID != s.ChannelID {
		return Ignored
	}
	if s.LastUser != "" && userID == s.LastUser {
		return DoubleTurn
	}

	n, err := strconv.Atoi(strings.TrimSpace(content))
	switch {
	case err != nil:
		s.reset()
		return NotANumber
	case n != s.CurrentNumber+1:
		s.reset()
		return Wrong
	}

	s.CurrentNumber = n
	s.LastUser = userID
	if n > s.Highscore {
		s.Highscore = n
	}
	return Correct
}

func (s *State) reset() {
	s.CurrentNumber = 0
	s.LastUser = ""
}

// Game is the store-backed, concurrency-safe counting game.
type Game struct {
	mu    sync.Mutex
	state State
	store storage.Store
}

// NewGame creates a game bound to a default channel, used until the stored
// state or !startcount names another.
func NewGame(store storage.Store, defaultChannel string) *Game {
	return &Game{store: store, state: State{ChannelID: defaultChannel}}
}

// Load reads the stored state, keeping the defaults when there is none.
func (g *Game) Load(ctx context.Context) error {
	var st State
	err := storage.LoadJSON(ctx, g.store, StateKey, &st)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load counting state: %w", err)
	}
	g.mu.Lock()
	g.state = st
	g.mu.Unlock()
	return nil
}

// Handle applies a message and saves the state when it changed.
func (g *Game) Handle(ctx context.Context, channelID, userID, content string) (Outcome, State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	outcome := g.state.Apply(channelID, userID, content)
	if outcome == Ignored || outcome == DoubleTurn {
		return outcome, g.state, nil
	}
	return outcome, g.state, g.save(ctx)
}

// Start moves the game to channelID and lets anyone count next.
func (g *Game) Start(ctx context.Context, channelID string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.ChannelID = channelID
	g.state.LastUser = ""
	return g.state, g.save(ctx)
}

// State returns a copy of the current state.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Game) save(ctx context.Context) error {
	if err := storage.SaveJSON(ctx, g.store, StateKey, g.state); err != nil {
		return fmt.Errorf("save counting state: %w", err)
	}
	return nil
}
