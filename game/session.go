package game

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// State is one participant's position in the shared game.
type State int

const (
	StatePreGame State = iota
	StateStarting
	StatePlaying
	StateLevelComplete
	StateTransitioning
	StateGameComplete
)

func (s State) String() string {
	switch s {
	case StatePreGame:
		return "pre_game"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StateLevelComplete:
		return "level_complete"
	case StateTransitioning:
		return "transitioning"
	case StateGameComplete:
		return "game_complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type EventType string

const (
	EventStartGame     EventType = "start-game"
	EventCorrectAnswer EventType = "correct-answer"
	EventNextLevel     EventType = "next-level"
	EventGameComplete  EventType = "game-complete"
)

// Event is the payload carried through the relay's send-game-update
// channel. Every random decision both sides must agree on travels here as
// an explicit field; receivers never roll their own.
type Event struct {
	Type      EventType `json:"type"`
	From      string    `json:"from,omitempty"`
	Level     int       `json:"level,omitempty"`     // answered level, or the target of next-level
	Answer    string    `json:"answer,omitempty"`    // correct-answer
	LevelSeed int64     `json:"levelSeed,omitempty"` // start-game
	SwapClues bool      `json:"swapClues"`           // start-game, next-level
	Stats     *Stats    `json:"stats,omitempty"`     // game-complete
}

var (
	// ErrStaleEvent marks an event whose precondition state does not
	// match; the caller drops it and changes nothing.
	ErrStaleEvent = errors.New("game: stale event for current state")

	// ErrNotInitiator is returned when the non-initiating participant
	// tries to originate the game start.
	ErrNotInitiator = errors.New("game: only the initiating site may start")
)

// LevelStat records who answered a level and how long it took, measured
// from this participant's local clock.
type LevelStat struct {
	Level      int    `json:"level"`
	AnsweredBy string `json:"answeredBy"`
	Millis     int64  `json:"millis"`
}

type Stats struct {
	Levels   []LevelStat    `json:"levels"`
	Messages map[string]int `json:"messages"` // site -> chat message count
}

func (s Stats) clone() Stats {
	out := Stats{
		Levels:   append([]LevelStat(nil), s.Levels...),
		Messages: make(map[string]int, len(s.Messages)),
	}
	for site, n := range s.Messages {
		out.Messages[site] = n
	}
	return out
}

// Session is one participant's copy of the shared state machine. The two
// copies converge only through relayed Events; local timing counters are
// allowed to drift and are reconciled by the completing side's snapshot.
type Session struct {
	site   string
	state  State
	levels []Level
	level  int  // current 0-based index
	swap   bool // clue-assignment decision for the current level

	// advancePending is set only on the side whose own message matched
	// the answer; it gates Advance so the peer can never drive a
	// competing transition for the same level.
	advancePending bool

	stats      Stats
	levelStart time.Time

	now      func() time.Time
	roll     func() bool
	seed     func() int64
	generate func(int64) []Level
}

// Option configures a Session; used by tests to pin clocks, rolls, and
// level sets.
type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithRolls(roll func() bool) Option {
	return func(s *Session) { s.roll = roll }
}

func WithSeedSource(seed func() int64) Option {
	return func(s *Session) { s.seed = seed }
}

func WithGenerator(generate func(int64) []Level) Option {
	return func(s *Session) { s.generate = generate }
}

func NewSession(site string, opts ...Option) *Session {
	s := &Session{
		site:     site,
		state:    StatePreGame,
		now:      time.Now,
		roll:     cryptoBool,
		seed:     cryptoSeed,
		generate: GenerateLevelSet,
		stats: Stats{
			Messages: map[string]int{
				SiteStrangestloop: 0,
				SiteUlyssepence:   0,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cryptoBool() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return b[0]&1 == 1
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}

func (s *Session) Site() string    { return s.site }
func (s *Session) State() State    { return s.state }
func (s *Session) LevelIndex() int { return s.level }
func (s *Session) Swapped() bool   { return s.swap }
func (s *Session) LevelTotal() int { return len(s.levels) }
func (s *Session) Stats() Stats    { return s.stats.clone() }

func (s *Session) CurrentLevel() Level {
	return s.levels[s.level]
}

// Clue returns the clue this participant should display for the current
// level, under the clue assignment currently in force.
func (s *Session) Clue() Clue {
	a, b := AssignClues(s.CurrentLevel(), s.swap)
	if s.site == SiteStrangestloop {
		return a
	}
	return b
}

// Start originates the game. Only the initiating site may call it; the
// other participant leaves PreGame solely on receipt of the returned
// event. The level seed and the first swap decision are rolled here, once,
// and transmitted.
func (s *Session) Start() (Event, error) {
	if !Initiator(s.site) {
		return Event{}, ErrNotInitiator
	}
	if s.state != StatePreGame {
		return Event{}, ErrStaleEvent
	}

	levelSeed := s.seed()
	s.levels = s.generate(levelSeed)
	s.swap = s.roll()
	s.level = 0
	s.state = StateStarting

	return Event{
		Type:      EventStartGame,
		From:      s.site,
		LevelSeed: levelSeed,
		SwapClues: s.swap,
	}, nil
}

// Ready moves Starting or Transitioning into Playing and starts the local
// level clock. Called when the client's intro or transition animation is
// done.
func (s *Session) Ready() error {
	if s.state != StateStarting && s.state != StateTransitioning {
		return ErrStaleEvent
	}
	s.state = StatePlaying
	s.levelStart = s.now()
	return nil
}

// SubmitMessage records a locally typed chat message and, while playing,
// checks it against the current level. On a correct answer this side
// becomes the driver of the next transition: the returned event must be
// relayed, and Advance must be called once the confirmation has been
// shown.
func (s *Session) SubmitMessage(text string) (Event, bool) {
	s.stats.Messages[s.site]++

	if s.state != StatePlaying || !CheckAnswer(text, s.CurrentLevel()) {
		return Event{}, false
	}

	s.stats.Levels = append(s.stats.Levels, LevelStat{
		Level:      s.level,
		AnsweredBy: s.site,
		Millis:     s.now().Sub(s.levelStart).Milliseconds(),
	})
	s.state = StateLevelComplete
	s.advancePending = true

	return Event{
		Type:   EventCorrectAnswer,
		From:   s.site,
		Level:  s.level,
		Answer: s.CurrentLevel().Answer,
	}, true
}

// ObservePartner counts a relayed chat message from the peer. Correctness
// is never checked here: only the participant who typed the answer drives
// transitions.
func (s *Session) ObservePartner(text string) {
	s.stats.Messages[PartnerSite(s.site)]++
}

// Advance emits the transition event after a correct answer: next-level
// with a freshly rolled swap decision, or game-complete with this side's
// statistics snapshot after the final level. Errors unless this side was
// the answerer.
func (s *Session) Advance() (Event, error) {
	if s.state != StateLevelComplete || !s.advancePending {
		return Event{}, ErrStaleEvent
	}
	s.advancePending = false

	if s.level == len(s.levels)-1 {
		s.state = StateGameComplete
		snapshot := s.stats.clone()
		return Event{
			Type:  EventGameComplete,
			From:  s.site,
			Level: s.level,
			Stats: &snapshot,
		}, nil
	}

	s.swap = s.roll()
	s.level++
	s.state = StateTransitioning

	return Event{
		Type:      EventNextLevel,
		From:      s.site,
		Level:     s.level,
		SwapClues: s.swap,
	}, nil
}

// HandleRemote applies a relayed event from the peer. Events whose
// precondition state does not match (duplicates, stale replays after
// reconnect) are rejected with ErrStaleEvent and change nothing.
func (s *Session) HandleRemote(ev Event) error {
	switch ev.Type {
	case EventStartGame:
		if s.state != StatePreGame || Initiator(s.site) {
			return ErrStaleEvent
		}
		s.levels = s.generate(ev.LevelSeed)
		s.swap = ev.SwapClues
		s.level = 0
		s.state = StateStarting

	case EventCorrectAnswer:
		if s.state != StatePlaying || ev.Level != s.level {
			return ErrStaleEvent
		}
		s.stats.Levels = append(s.stats.Levels, LevelStat{
			Level:      s.level,
			AnsweredBy: ev.From,
			Millis:     s.now().Sub(s.levelStart).Milliseconds(),
		})
		s.state = StateLevelComplete

	case EventNextLevel:
		if s.state != StateLevelComplete || ev.Level != s.level+1 {
			return ErrStaleEvent
		}
		s.swap = ev.SwapClues // transmitted decision, never re-rolled
		s.level = ev.Level
		s.state = StateTransitioning

	case EventGameComplete:
		if s.state != StateLevelComplete || ev.Level != s.level || ev.Stats == nil {
			return ErrStaleEvent
		}
		// The completing side's snapshot is the merge point; local
		// counters are discarded.
		s.stats = ev.Stats.clone()
		s.state = StateGameComplete

	default:
		return fmt.Errorf("game: unknown event type %q", ev.Type)
	}

	return nil
}
