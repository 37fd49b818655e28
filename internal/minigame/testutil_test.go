package minigame

import (
	"context"
	"errors"
	"sync"
	"time"
)

// scriptGame scores a fixed number of points per act, one more for the secondary slot
// unless even is set. Input "bad" is rejected and "end" finishes the game early.
type scriptGame struct {
	kind   string
	rules  Rules
	points int
	even   bool
	calls  int
	mu     sync.Mutex
}

func newScriptGame(kind string, rounds int) *scriptGame {
	return &scriptGame{kind: kind, rules: Rules{MaxRounds: rounds, SlotsPerRound: 2}, points: 1}
}

func (g *scriptGame) Kind() string { return g.kind }

func (g *scriptGame) Rules(Mode) Rules { return g.rules }

func (g *scriptGame) Setup(s *Session) error {
	s.Data["setup"] = "yes"
	return nil
}

func (g *scriptGame) Resolve(_ context.Context, s Session, slot Turn, input string) (Effect, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	switch input {
	case "bad":
		return Effect{}, &InputError{Reason: "bad input"}
	case "end":
		return Effect{Points: 10, EndsGame: true}, nil
	}
	pts := g.points
	if slot == TurnSecondary && !g.even {
		pts++
	}
	return Effect{Points: pts, Detail: input}, nil
}

func (g *scriptGame) Judge(s Session) map[Turn]Outcome { return CompareScores(s) }

type recordingPresenter struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (p *recordingPresenter) Render(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if p.fail {
		return errors.New("presenter down")
	}
	return nil
}

func (p *recordingPresenter) count(kind EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) expiredFor(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind == EventChallengeExpired && ev.Challenge != nil && ev.Challenge.ID == id {
			n++
		}
	}
	return n
}

type record struct {
	realm, player, kind string
	outcome             Outcome
}

type recordingScores struct {
	mu      sync.Mutex
	records []record
}

func (r *recordingScores) Record(_ context.Context, realm, player, kind string, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record{realm, player, kind, outcome})
	return nil
}

func (r *recordingScores) all() []record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]record(nil), r.records...)
}

type fakeCooldown struct {
	mu        sync.Mutex
	remaining map[string]time.Duration
	sets      []string
	failCheck bool
}

func newFakeCooldown() *fakeCooldown {
	return &fakeCooldown{remaining: map[string]time.Duration{}}
}

func (c *fakeCooldown) Check(_ context.Context, _ string, player string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCheck {
		return 0, errors.New("store down")
	}
	return c.remaining[player], nil
}

func (c *fakeCooldown) Set(_ context.Context, _ string, player string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, player)
	return nil
}

func (c *fakeCooldown) setCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sets...)
}

func act(realm, actor string, kind ActionKind) ActorAction {
	return ActorAction{Realm: realm, Actor: actor, ActorName: actor, Kind: kind, Game: "dice"}
}
