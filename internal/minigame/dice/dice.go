// Package dice is the dice duel: each act rolls 2d6 and adds the sum to the actor's score.
package dice

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

const (
	Kind          = "dice"
	DefaultRounds = 3
	Sides         = 6
)

// Roll is the Move detail of one act.
type Roll struct {
	Dice [2]int
	Sum  int
}

type Game struct {
	rounds int

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Game)

// WithRand replaces the random source (tests use a fixed seed).
func WithRand(r *rand.Rand) Option {
	return func(g *Game) {
		if r != nil {
			g.rng = r
		}
	}
}

func WithRounds(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.rounds = n
		}
	}
}

func New(opts ...Option) *Game {
	g := &Game{
		rounds: DefaultRounds,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Game) Kind() string { return Kind }

func (g *Game) Rules(minigame.Mode) minigame.Rules {
	return minigame.Rules{MaxRounds: g.rounds, SlotsPerRound: 2}
}

func (g *Game) Setup(*minigame.Session) error { return nil }

// Resolve ignores the input text; any "roll" command rolls.
func (g *Game) Resolve(_ context.Context, _ minigame.Session, _ minigame.Turn, _ string) (minigame.Effect, error) {
	r := g.roll()
	return minigame.Effect{Points: r.Sum, Detail: r}, nil
}

func (g *Game) Judge(s minigame.Session) map[minigame.Turn]minigame.Outcome {
	return minigame.CompareScores(s)
}

func (g *Game) roll() Roll {
	g.mu.Lock()
	a, b := g.rng.Intn(Sides)+1, g.rng.Intn(Sides)+1
	g.mu.Unlock()
	return Roll{Dice: [2]int{a, b}, Sum: a + b}
}

// Rolls extracts the roll details of moves, skipping anything that is not a Roll.
func Rolls(moves []minigame.Move) []Roll {
	out := make([]Roll, 0, len(moves))
	for _, m := range moves {
		if r, ok := m.Detail.(Roll); ok {
			out = append(out, r)
		}
	}
	return out
}
