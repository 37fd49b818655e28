// Package wordle is the word guess game: find the secret 5-letter word with green, yellow
// and gray hints. In PvP both players guess the same word in turns.
package wordle

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

const (
	Kind              = "wordle"
	WordLength        = 5
	DefaultMaxGuesses = 6

	dataSecret = "secret"
)

type Mark byte

const (
	Gray Mark = iota
	Yellow
	Green
)

func (m Mark) String() string {
	switch m {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	default:
		return "gray"
	}
}

// Guess is the Move detail of one act.
type Guess struct {
	Word   string
	Marks  [WordLength]Mark
	Solved bool
}

type Game struct {
	dict       Dictionary
	maxGuesses int

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Game)

func WithRand(r *rand.Rand) Option {
	return func(g *Game) {
		if r != nil {
			g.rng = r
		}
	}
}

func WithMaxGuesses(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.maxGuesses = n
		}
	}
}

func New(dict Dictionary, opts ...Option) *Game {
	if dict == nil {
		dict = DefaultWordList()
	}
	g := &Game{
		dict:       dict,
		maxGuesses: DefaultMaxGuesses,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Game) Kind() string { return Kind }

func (g *Game) MaxGuesses() int { return g.maxGuesses }

func (g *Game) Rules(mode minigame.Mode) minigame.Rules {
	if mode == minigame.ModePvP {
		return minigame.Rules{MaxRounds: g.maxGuesses, SlotsPerRound: 2}
	}
	return minigame.Rules{MaxRounds: g.maxGuesses, SlotsPerRound: 1, AutoStart: true}
}

func (g *Game) Setup(s *minigame.Session) error {
	g.mu.Lock()
	secret := g.dict.Random(g.rng)
	g.mu.Unlock()
	s.Data[dataSecret] = secret
	return nil
}

// Secret returns the word of a session ("" if it has none).
func Secret(s minigame.Session) string { return s.Data[dataSecret] }

func (g *Game) Resolve(_ context.Context, s minigame.Session, slot minigame.Turn, input string) (minigame.Effect, error) {
	word, ok := normalize(input)
	if !ok {
		return minigame.Effect{}, &minigame.InputError{Reason: "5글자 영어 단어가 아닙니다"}
	}
	if !g.dict.Contains(word) {
		return minigame.Effect{}, &minigame.InputError{Reason: "단어 목록에 없는 단어입니다"}
	}
	secret := Secret(s)
	if secret == "" {
		return minigame.Effect{}, minigame.ErrInvalidState
	}
	guess := Guess{Word: word, Marks: Score(secret, word), Solved: word == secret}
	eff := minigame.Effect{Detail: guess}
	if guess.Solved {
		used := guessesBy(s, slot) + 1
		eff.Points = g.maxGuesses - used + 1
		eff.EndsGame = true
	}
	return eff, nil
}

// Judge: the solver wins. Without a solver, single mode is a loss and PvP is a tie.
func (g *Game) Judge(s minigame.Session) map[minigame.Turn]minigame.Outcome {
	solver, ok := Solver(s)
	if ok {
		return map[minigame.Turn]minigame.Outcome{solver: minigame.OutcomeWin, solver.Other(): minigame.OutcomeLoss}
	}
	if s.Mode == minigame.ModeSingle {
		return map[minigame.Turn]minigame.Outcome{minigame.TurnPrimary: minigame.OutcomeLoss, minigame.TurnSecondary: minigame.OutcomeWin}
	}
	return map[minigame.Turn]minigame.Outcome{minigame.TurnPrimary: minigame.OutcomeTie, minigame.TurnSecondary: minigame.OutcomeTie}
}

// Solver returns the slot whose guess matched the secret.
func Solver(s minigame.Session) (minigame.Turn, bool) {
	for _, m := range s.Moves {
		if g, ok := m.Detail.(Guess); ok && g.Solved {
			return m.Slot, true
		}
	}
	return "", false
}

// Guesses extracts the guess history of a session in play order.
func Guesses(s minigame.Session) []Guess {
	out := make([]Guess, 0, len(s.Moves))
	for _, m := range s.Moves {
		if g, ok := m.Detail.(Guess); ok {
			out = append(out, g)
		}
	}
	return out
}

func guessesBy(s minigame.Session, slot minigame.Turn) int {
	n := 0
	for _, m := range s.Moves {
		if m.Slot == slot {
			n++
		}
	}
	return n
}

// Score marks guess against secret. Greens are taken first so a repeated letter is only
// marked yellow while unmatched copies remain in the secret.
func Score(secret, guess string) [WordLength]Mark {
	var marks [WordLength]Mark
	var left [26]int
	for i := 0; i < WordLength; i++ {
		if guess[i] == secret[i] {
			marks[i] = Green
			continue
		}
		left[secret[i]-'a']++
	}
	for i := 0; i < WordLength; i++ {
		if marks[i] == Green {
			continue
		}
		c := guess[i] - 'a'
		if left[c] > 0 {
			marks[i] = Yellow
			left[c]--
		}
	}
	return marks
}
