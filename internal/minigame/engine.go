package minigame

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/obslog"
)

const (
	DefaultChallengeTTL = 30 * time.Second

	// ChooseFirst inputs, relative to the actor.
	ChoiceFirst  = "first"
	ChoiceSecond = "second"

	// automated acts are bounded so a misbehaving Game cannot spin forever
	maxAutomatedActs = 64
)

// Engine is the facade the inbound adapters talk to.
type Engine struct {
	sessions   *SessionStore
	challenges *ChallengeRegistry
	turns      *TurnEngine
	finalizer  *ResultFinalizer

	games     map[string]Game
	gates     map[string]*CooldownGate
	scores    ScoreRecorder
	presenter Presenter
	ttl       time.Duration
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Engine)

func WithPresenter(p Presenter) Option { return func(e *Engine) { e.presenter = p } }

func WithScores(r ScoreRecorder) Option { return func(e *Engine) { e.scores = r } }

// WithCooldown attaches a cooldown store to one game kind.
func WithCooldown(kind string, c Cooldown) Option {
	return func(e *Engine) { e.gates[kind] = NewCooldownGate(c) }
}

func WithChallengeTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(games []Game, opts ...Option) *Engine {
	e := &Engine{
		sessions: NewSessionStore(),
		turns:    NewTurnEngine(),
		games:    make(map[string]Game, len(games)),
		gates:    make(map[string]*CooldownGate),
		ttl:      DefaultChallengeTTL,
		now:      time.Now,
		log:      obslog.Named("minigame"),
	}
	for _, g := range games {
		e.games[g.Kind()] = g
	}
	for _, o := range opts {
		o(e)
	}
	e.turns.now = e.now
	e.challenges = NewChallengeRegistry(e.sessions, e.onChallengeExpired)
	e.challenges.now = e.now
	e.finalizer = NewResultFinalizer(e.sessions, e.scores)
	return e
}

// Kinds lists the registered games in a stable order.
func (e *Engine) Kinds() []string {
	out := make([]string, 0, len(e.games))
	for k := range e.games {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) Game(kind string) (Game, bool) {
	g, ok := e.games[kind]
	return g, ok
}

func (e *Engine) game(kind string) (Game, error) {
	g, ok := e.games[strings.TrimSpace(kind)]
	if !ok {
		return nil, ErrUnknownGame
	}
	return g, nil
}

// gate never returns nil; an unconfigured kind gets a gate without a store.
func (e *Engine) gate(kind string) *CooldownGate {
	if g, ok := e.gates[kind]; ok {
		return g
	}
	return NewCooldownGate(nil)
}

// StartSingle opens a game against the automated opponent.
func (e *Engine) StartSingle(ctx context.Context, a ActorAction) (Session, error) {
	g, err := e.game(a.Game)
	if err != nil {
		return Session{}, err
	}
	if !(Key{Realm: a.Realm, Player: a.Actor}).valid() {
		return Session{}, ErrInvalidArgs
	}
	if e.sessions.Busy(a.Realm, a.Actor) {
		return Session{}, ErrAlreadyActive
	}
	if err := e.gate(g.Kind()).Check(ctx, a.Realm, a.Actor); err != nil {
		return Session{}, err
	}
	s := e.newSession(g.Kind(), ModeSingle, a.Realm, a.Actor, "", map[string]string{a.Actor: a.ActorName})
	if err := e.turns.Begin(s, g); err != nil {
		return Session{}, err
	}
	if err := e.challenges.CreateSession(s); err != nil {
		return Session{}, err
	}
	snap := s.Clone()
	e.log.Info("session_start",
		zap.String("session_id", snap.ID), zap.String("realm", snap.Realm),
		zap.String("kind", snap.Kind), zap.String("mode", string(snap.Mode)), zap.String("player", a.Actor))
	e.render(ctx, Event{Kind: EventSessionStarted, Session: &snap})
	return snap, nil
}

// ProposeChallenge asks a.Target to play a.Game against the actor.
func (e *Engine) ProposeChallenge(ctx context.Context, a ActorAction) (Challenge, error) {
	g, err := e.game(a.Game)
	if err != nil {
		return Challenge{}, err
	}
	if strings.TrimSpace(a.Target) == "" {
		return Challenge{}, ErrInvalidArgs
	}
	if a.Actor == a.Target {
		return Challenge{}, ErrSelfChallenge
	}
	if err := e.gate(g.Kind()).Check(ctx, a.Realm, a.Actor, a.Target); err != nil {
		return Challenge{}, err
	}
	names := map[string]string{a.Actor: a.ActorName, a.Target: a.TargetName}
	ch, err := e.challenges.Propose(a.Realm, g.Kind(), a.Actor, a.Target, names, e.ttl)
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge_proposed",
		zap.String("challenge_id", ch.ID), zap.String("realm", ch.Realm), zap.String("kind", ch.Kind),
		zap.String("challenger", ch.Challenger), zap.String("challenged", ch.Challenged),
		zap.Time("expires_at", ch.ExpiresAt))
	e.render(ctx, Event{Kind: EventChallengeProposed, Challenge: &ch})
	return ch, nil
}

// resolveChallenge finds the challenge addressed to the actor. Without a target the newest
// pending one is used.
func (e *Engine) resolveChallenge(a ActorAction) (Challenge, error) {
	if strings.TrimSpace(a.Target) != "" {
		ch, ok := e.challenges.Get(a.Realm, a.Actor, a.Target)
		if !ok {
			return Challenge{}, ErrNotFound
		}
		return ch, nil
	}
	pending := e.challenges.PendingFor(a.Realm, a.Actor)
	if len(pending) == 0 {
		return Challenge{}, ErrNotFound
	}
	return pending[0], nil
}

// AcceptChallenge turns the pending challenge into a PvP session.
func (e *Engine) AcceptChallenge(ctx context.Context, a ActorAction) (Session, error) {
	ch, err := e.resolveChallenge(a)
	if err != nil {
		return Session{}, err
	}
	g, err := e.game(ch.Kind)
	if err != nil {
		return Session{}, err
	}
	if a.Actor != ch.Challenged {
		return Session{}, ErrNotYourChallenge
	}
	if err := e.gate(g.Kind()).Check(ctx, a.Realm, ch.Challenger, ch.Challenged); err != nil {
		return Session{}, err
	}

	acc, err := e.challenges.Accept(ch.Key(), a.Actor, func(c Challenge) (*Session, error) {
		names := cloneMap(c.Names)
		if a.ActorName != "" {
			names[a.Actor] = a.ActorName
		}
		s := e.newSession(c.Kind, ModePvP, c.Realm, c.Challenger, c.Challenged, names)
		if err := e.turns.Begin(s, g); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		if errors.Is(err, ErrExpired) {
			// the timer lost the race against the deadline; nobody else will announce it
			e.announceExpired(ctx, acc.Challenge)
		}
		return Session{}, err
	}
	for _, c := range acc.Cancelled {
		e.log.Info("challenge_cancelled", zap.String("challenge_id", c.ID), zap.String("reason", "participant_started"))
		e.render(ctx, Event{Kind: EventChallengeDeclined, Challenge: &c})
	}
	snap := acc.Session
	e.log.Info("session_start",
		zap.String("session_id", snap.ID), zap.String("realm", snap.Realm), zap.String("kind", snap.Kind),
		zap.String("mode", string(snap.Mode)), zap.String("primary", snap.Primary), zap.String("secondary", snap.Secondary))
	e.render(ctx, Event{Kind: EventSessionStarted, Session: &snap, Challenge: &acc.Challenge})
	return snap, nil
}

func (e *Engine) DeclineChallenge(ctx context.Context, a ActorAction) (Challenge, error) {
	ch, err := e.resolveChallenge(a)
	if err != nil {
		return Challenge{}, err
	}
	ch, err = e.challenges.Decline(ch.Key(), a.Actor)
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge_declined", zap.String("challenge_id", ch.ID), zap.String("realm", ch.Realm))
	e.render(ctx, Event{Kind: EventChallengeDeclined, Challenge: &ch})
	return ch, nil
}

func (e *Engine) onChallengeExpired(ch Challenge) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.announceExpired(ctx, ch)
}

func (e *Engine) announceExpired(ctx context.Context, ch Challenge) {
	e.log.Info("challenge_expired",
		zap.String("challenge_id", ch.ID), zap.String("realm", ch.Realm),
		zap.String("challenger", ch.Challenger), zap.String("challenged", ch.Challenged))
	e.render(ctx, Event{Kind: EventChallengeExpired, Challenge: &ch})
}

// ChooseFirst picks the starter. a.Input is ChoiceFirst or ChoiceSecond from the actor's
// point of view. Either participant may choose; the first choice wins.
func (e *Engine) ChooseFirst(ctx context.Context, a ActorAction) (Session, error) {
	k := Key{Realm: a.Realm, Player: a.Actor}
	snap, ok := e.sessions.Get(k)
	if !ok {
		return Session{}, ErrNotFound
	}
	g, err := e.game(snap.Kind)
	if err != nil {
		return Session{}, err
	}
	slot, _ := snap.SlotOf(a.Actor)
	var choice Turn
	switch strings.ToLower(strings.TrimSpace(a.Input)) {
	case ChoiceFirst, "":
		choice = slot
	case ChoiceSecond:
		choice = slot.Other()
	default:
		return Session{}, ErrInvalidArgs
	}
	live, err := e.sessions.Update(k, snap.ID, func(s *Session) error {
		return e.turns.ChooseFirst(s, choice)
	})
	if err != nil {
		return Session{}, err
	}
	e.log.Info("first_chosen", zap.String("session_id", live.ID), zap.String("starter", string(live.Starter)))
	e.render(ctx, Event{Kind: EventFirstChosen, Session: &live})

	live, moves, finished, err := e.driveAutomated(ctx, g, k, live)
	if err != nil {
		return live, err
	}
	return e.afterActs(ctx, g, k, live, moves, finished), nil
}

// Act performs the actor's move and, in single mode, every automated move that follows.
func (e *Engine) Act(ctx context.Context, a ActorAction) (Session, error) {
	k := Key{Realm: a.Realm, Player: a.Actor}
	snap, ok := e.sessions.Get(k)
	if !ok {
		return Session{}, ErrNotFound
	}
	// 다른 게임의 명령으로 진행 중인 턴을 쓰지 않는다
	if a.Game != "" && a.Game != snap.Kind {
		return snap, ErrInvalidState
	}
	g, err := e.game(snap.Kind)
	if err != nil {
		return Session{}, err
	}
	slot, _ := snap.SlotOf(a.Actor)
	live, finished, err := e.step(ctx, g, k, snap, slot, a.Input)
	if err != nil {
		return snap, err
	}
	moves := newMoves(snap, live)
	if !finished {
		var more []Move
		live, more, finished, err = e.driveAutomated(ctx, g, k, live)
		moves = append(moves, more...)
		if err != nil {
			return live, err
		}
	}
	return e.afterActs(ctx, g, k, live, moves, finished), nil
}

// step resolves on snap outside the lock and applies under it.
func (e *Engine) step(ctx context.Context, g Game, k Key, snap Session, slot Turn, input string) (Session, bool, error) {
	eff, err := e.turns.Prepare(ctx, g, snap, slot, input)
	if err != nil {
		return Session{}, false, err
	}
	var finished bool
	live, err := e.sessions.Update(k, snap.ID, func(s *Session) error {
		var aerr error
		finished, aerr = e.turns.Apply(s, g.Rules(s.Mode), slot, snap.Version, eff)
		return aerr
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// removed between snapshot and apply (finalized or dropped)
			return Session{}, false, ErrGameFinished
		}
		return Session{}, false, err
	}
	return live, finished, nil
}

func (e *Engine) driveAutomated(ctx context.Context, g Game, k Key, live Session) (Session, []Move, bool, error) {
	var moves []Move
	for i := 0; i < maxAutomatedActs && live.Turn.isSlot() && live.Automated(live.Turn); i++ {
		next, finished, err := e.step(ctx, g, k, live, live.Turn, "")
		if err != nil {
			e.log.Error("automated_act_error", zap.String("session_id", live.ID), zap.Error(err))
			return live, moves, false, err
		}
		moves = append(moves, newMoves(live, next)...)
		live = next
		if finished {
			return live, moves, true, nil
		}
	}
	return live, moves, false, nil
}

// afterActs renders the applied moves and finalizes when this caller caused the transition
// into finished.
func (e *Engine) afterActs(ctx context.Context, g Game, k Key, live Session, moves []Move, finished bool) Session {
	if len(moves) > 0 {
		e.log.Info("session_moves", zap.String("session_id", live.ID), zap.Int("count", len(moves)),
			zap.Int("round", live.Round), zap.String("turn", string(live.Turn)))
		e.render(ctx, Event{Kind: EventMoves, Session: &live, Moves: moves})
	}
	if !finished {
		return live
	}
	final, outcomes, ok := e.finalizer.Finalize(ctx, g, e.gate(live.Kind), k, live.ID)
	if !ok {
		return live
	}
	e.render(ctx, Event{Kind: EventSessionFinished, Session: &final, Outcomes: outcomes})
	return final
}

func newMoves(before, after Session) []Move {
	if len(after.Moves) <= len(before.Moves) {
		return nil
	}
	return append([]Move(nil), after.Moves[len(before.Moves):]...)
}

// Status re-renders the actor's live session.
func (e *Engine) Status(ctx context.Context, a ActorAction) (Session, error) {
	snap, ok := e.sessions.Get(Key{Realm: a.Realm, Player: a.Actor})
	if !ok {
		return Session{}, ErrNotFound
	}
	e.render(ctx, Event{Kind: EventStatus, Session: &snap})
	return snap, nil
}

// Session returns a snapshot of the player's live session.
func (e *Engine) Session(realm, player string) (Session, bool) {
	return e.sessions.Get(Key{Realm: realm, Player: player})
}

func (e *Engine) Sessions(realm string) []Session { return e.sessions.List(realm) }

func (e *Engine) PendingFor(realm, player string) []Challenge {
	return e.challenges.PendingFor(realm, player)
}

// DropRealm removes every session and challenge of a realm whose chat surface went away.
// No scores or cooldowns are written and nothing is rendered.
func (e *Engine) DropRealm(realm string) ([]Session, []Challenge) {
	chs := e.challenges.DropRealm(realm)
	ss := e.sessions.RemoveWhere(func(s *Session) bool { return s.Realm == realm && !s.finalizing })
	e.log.Info("realm_dropped", zap.String("realm", realm), zap.Int("sessions", len(ss)), zap.Int("challenges", len(chs)))
	return ss, chs
}

// SweepIdle removes sessions nobody touched for idle.
func (e *Engine) SweepIdle(idle time.Duration) []Session {
	if idle <= 0 {
		return nil
	}
	removed := e.sessions.RemoveWhere(idleBefore(e.now().Add(-idle)))
	for _, s := range removed {
		e.log.Info("session_idle_removed", zap.String("session_id", s.ID), zap.String("realm", s.Realm),
			zap.Duration("idle", e.now().Sub(s.UpdatedAt)))
	}
	return removed
}

type EngineStats struct {
	Sessions   int
	Challenges int
	ByKind     map[string]int
}

func (e *Engine) Stats() EngineStats {
	list := e.sessions.List("")
	st := EngineStats{Sessions: len(list), Challenges: e.challenges.Len(), ByKind: map[string]int{}}
	for _, s := range list {
		st.ByKind[s.Kind]++
	}
	return st
}

// Close stops every challenge timer. Live sessions are left in place.
func (e *Engine) Close() {
	e.challenges.Close()
}

func (e *Engine) newSession(kind string, mode Mode, realm, primary, secondary string, names map[string]string) *Session {
	now := e.now()
	return &Session{
		ID:        uuid.NewString(),
		Realm:     realm,
		Kind:      kind,
		Mode:      mode,
		Primary:   primary,
		Secondary: secondary,
		Names:     cloneMap(names),
		Data:      map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// render is best effort: a failing presenter is logged and never touches engine state.
func (e *Engine) render(ctx context.Context, ev Event) {
	if e.presenter == nil {
		return
	}
	if err := e.presenter.Render(ctx, ev); err != nil {
		e.log.Warn("render_error", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}
