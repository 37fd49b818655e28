package minigame

import (
	"context"
	"strings"
	"time"
)

// Key addresses one player inside one realm (chat room).
type Key struct {
	Realm  string
	Player string
}

func (k Key) String() string { return k.Realm + "/" + k.Player }

func (k Key) valid() bool {
	return strings.TrimSpace(k.Realm) != "" && strings.TrimSpace(k.Player) != ""
}

type Mode string

const (
	ModeSingle Mode = "single"
	ModePvP    Mode = "pvp"
)

// Turn is both the session phase and the identity of the two participant slots.
type Turn string

const (
	TurnChoosing  Turn = "choosing"
	TurnPrimary   Turn = "primary"
	TurnSecondary Turn = "secondary"
	TurnFinished  Turn = "finished"
)

// Other returns the opposite participant slot.
func (t Turn) Other() Turn {
	switch t {
	case TurnPrimary:
		return TurnSecondary
	case TurnSecondary:
		return TurnPrimary
	default:
		return t
	}
}

func (t Turn) isSlot() bool { return t == TurnPrimary || t == TurnSecondary }

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Rules fix the turn topology of a game.
type Rules struct {
	MaxRounds     int
	SlotsPerRound int  // 2: both slots act each round, 1: only the starter acts
	AutoStart     bool // skip the choosing phase, primary starts
}

func (r Rules) normalized() Rules {
	if r.MaxRounds <= 0 {
		r.MaxRounds = 1
	}
	if r.SlotsPerRound != 1 {
		r.SlotsPerRound = 2
	}
	return r
}

// Move is one applied act.
type Move struct {
	Round  int
	Slot   Turn
	Player string
	Points int
	Detail any
}

// Effect is what a Game computes for a single act.
type Effect struct {
	Points   int
	EndsGame bool
	Detail   any
}

// Session is one live game. Values handed out by the engine are snapshots.
type Session struct {
	ID        string
	Realm     string
	Kind      string
	Mode      Mode
	Primary   string
	Secondary string // empty in single mode: automated opponent
	Names     map[string]string

	Turn         Turn
	Starter      Turn
	Round        int
	ActedInRound int
	Scores       map[Turn]int
	Moves        []Move
	Data         map[string]string
	Version      int

	CreatedAt time.Time
	UpdatedAt time.Time

	finalizing bool
}

// Keys lists every store key this session is registered under.
func (s *Session) Keys() []Key {
	keys := []Key{{Realm: s.Realm, Player: s.Primary}}
	if s.Secondary != "" {
		keys = append(keys, Key{Realm: s.Realm, Player: s.Secondary})
	}
	return keys
}

// SlotOf resolves a player id to its participant slot.
func (s *Session) SlotOf(player string) (Turn, bool) {
	switch {
	case player == "":
		return "", false
	case player == s.Primary:
		return TurnPrimary, true
	case player == s.Secondary:
		return TurnSecondary, true
	}
	return "", false
}

// PlayerAt returns the player id in a slot ("" for the automated opponent).
func (s *Session) PlayerAt(slot Turn) string {
	if slot == TurnSecondary {
		return s.Secondary
	}
	return s.Primary
}

// Automated reports whether the slot is played by the bot.
func (s *Session) Automated(slot Turn) bool {
	return s.Mode == ModeSingle && slot == TurnSecondary
}

// NameOf returns the display name of a player, falling back to the id.
func (s *Session) NameOf(player string) string {
	if n := strings.TrimSpace(s.Names[player]); n != "" {
		return n
	}
	return player
}

func (s *Session) Clone() Session {
	c := *s
	c.Names = cloneMap(s.Names)
	c.Data = cloneMap(s.Data)
	c.Scores = make(map[Turn]int, len(s.Scores))
	for k, v := range s.Scores {
		c.Scores[k] = v
	}
	c.Moves = append([]Move(nil), s.Moves...)
	return c
}

// Challenge is a pending PvP proposal.
type Challenge struct {
	ID         string
	Realm      string
	Kind       string
	Challenger string
	Challenged string
	Names      map[string]string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ChallengeKey identifies a challenge by its direction.
type ChallengeKey struct {
	Realm      string
	Challenger string
	Challenged string
}

func (c *Challenge) Key() ChallengeKey {
	return ChallengeKey{Realm: c.Realm, Challenger: c.Challenger, Challenged: c.Challenged}
}

func (c *Challenge) clone() Challenge {
	cc := *c
	cc.Names = cloneMap(c.Names)
	return cc
}

type ActionKind string

const (
	ActionStartSingle ActionKind = "start_single"
	ActionPropose     ActionKind = "propose"
	ActionAccept      ActionKind = "accept"
	ActionDecline     ActionKind = "decline"
	ActionChooseFirst ActionKind = "choose_first"
	ActionAct         ActionKind = "act"
	ActionStatus      ActionKind = "status"
	ActionStats       ActionKind = "stats"
	ActionHelp        ActionKind = "help"
)

// ActorAction is the only shape inbound adapters hand to the engine.
type ActorAction struct {
	Realm      string
	Actor      string
	ActorName  string
	Kind       ActionKind
	Game       string
	Target     string
	TargetName string
	Input      string
}

type EventKind string

const (
	EventSessionStarted    EventKind = "session_started"
	EventFirstChosen       EventKind = "first_chosen"
	EventMoves             EventKind = "moves"
	EventSessionFinished   EventKind = "session_finished"
	EventStatus            EventKind = "status"
	EventChallengeProposed EventKind = "challenge_proposed"
	EventChallengeDeclined EventKind = "challenge_declined"
	EventChallengeExpired  EventKind = "challenge_expired"
)

// Event is handed to the Presenter after the state change is committed.
type Event struct {
	Kind      EventKind
	Session   *Session
	Challenge *Challenge
	Moves     []Move
	Outcomes  map[Turn]Outcome
}

// Cooldown is the external per-player last-played store.
type Cooldown interface {
	Check(ctx context.Context, realm, player string) (time.Duration, error)
	Set(ctx context.Context, realm, player string) error
}

type ScoreRecorder interface {
	Record(ctx context.Context, realm, player, kind string, outcome Outcome) error
}

type Presenter interface {
	Render(ctx context.Context, ev Event) error
}

// Game is the per-game move resolver plugged into the TurnEngine.
type Game interface {
	Kind() string
	Rules(mode Mode) Rules
	// Setup prepares game data on a fresh session (e.g. picks a secret word).
	Setup(s *Session) error
	// Resolve computes the effect of one act. It runs outside every engine lock.
	Resolve(ctx context.Context, s Session, slot Turn, input string) (Effect, error)
	// Judge decides per-slot outcomes of a finished session.
	Judge(s Session) map[Turn]Outcome
}

// CompareScores is the default Judge for score-based games.
func CompareScores(s Session) map[Turn]Outcome {
	p, q := s.Scores[TurnPrimary], s.Scores[TurnSecondary]
	switch {
	case p > q:
		return map[Turn]Outcome{TurnPrimary: OutcomeWin, TurnSecondary: OutcomeLoss}
	case p < q:
		return map[Turn]Outcome{TurnPrimary: OutcomeLoss, TurnSecondary: OutcomeWin}
	default:
		return map[Turn]Outcome{TurnPrimary: OutcomeTie, TurnSecondary: OutcomeTie}
	}
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
