package wordle

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

func marks(s string) [WordLength]Mark {
	var out [WordLength]Mark
	for i, c := range s {
		switch c {
		case 'G':
			out[i] = Green
		case 'Y':
			out[i] = Yellow
		}
	}
	return out
}

func TestScore(t *testing.T) {
	cases := []struct {
		secret, guess, want string
	}{
		{"crane", "crane", "GGGGG"},
		{"crane", "nacre", "YYYYG"},
		{"apple", "papal", "YYG.Y"},
		{"abbey", "babes", "YYGG."},
		// only one 'e' left after the green match
		{"there", "eerie", "Y.Y.G"},
		{"robot", "floor", "..YGY"},
	}
	for _, c := range cases {
		require.Equal(t, marks(c.want), Score(c.secret, c.guess), "%s/%s", c.secret, c.guess)
	}
}

func smallDict(t *testing.T, words ...string) *WordList {
	t.Helper()
	wl, err := ParseWordList(strings.NewReader(strings.Join(words, "\n")))
	require.NoError(t, err)
	return wl
}

func TestParseWordList(t *testing.T) {
	wl, err := ParseWordList(strings.NewReader("# comment\nCrane\n\nslate\ncrane\ntoolong\nab1de\n"))
	require.NoError(t, err)
	require.Equal(t, 2, wl.Len())
	require.True(t, wl.Contains("CRANE"))
	require.False(t, wl.Contains("toolong"))

	_, err = ParseWordList(strings.NewReader("# nothing\n"))
	require.Error(t, err)

	require.Greater(t, DefaultWordList().Len(), 100)
}

func TestLoadWordListFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbravo\n"), 0o644))
	wl, err := LoadWordList(path)
	require.NoError(t, err)
	require.Equal(t, 2, wl.Len())

	_, err = LoadWordList(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)

	wl, err = LoadWordList("")
	require.NoError(t, err)
	require.Equal(t, DefaultWordList().Len(), wl.Len())
}

func TestResolveRejectsWithoutConsuming(t *testing.T) {
	g := New(smallDict(t, "crane", "slate"))
	s := minigame.Session{Data: map[string]string{dataSecret: "crane"}}

	_, err := g.Resolve(context.Background(), s, minigame.TurnPrimary, "cat")
	require.ErrorIs(t, err, minigame.ErrInvalidInput)
	_, err = g.Resolve(context.Background(), s, minigame.TurnPrimary, "zzzzz")
	require.ErrorIs(t, err, minigame.ErrInvalidInput)

	eff, err := g.Resolve(context.Background(), s, minigame.TurnPrimary, " SLATE ")
	require.NoError(t, err)
	require.False(t, eff.EndsGame)
	require.Zero(t, eff.Points)
	require.Equal(t, "slate", eff.Detail.(Guess).Word)
}

func TestSolvePoints(t *testing.T) {
	g := New(smallDict(t, "crane", "slate"))
	s := minigame.Session{
		Data:  map[string]string{dataSecret: "crane"},
		Moves: []minigame.Move{{Slot: minigame.TurnPrimary}, {Slot: minigame.TurnSecondary}, {Slot: minigame.TurnPrimary}},
	}
	eff, err := g.Resolve(context.Background(), s, minigame.TurnPrimary, "crane")
	require.NoError(t, err)
	require.True(t, eff.EndsGame)
	// third guess of six
	require.Equal(t, 4, eff.Points)
}

func newEngine(t *testing.T, words ...string) *minigame.Engine {
	t.Helper()
	g := New(smallDict(t, words...), WithRand(rand.New(rand.NewSource(3))))
	eng := minigame.New([]minigame.Game{g})
	t.Cleanup(eng.Close)
	return eng
}

func TestSingleSolvedThroughEngine(t *testing.T) {
	eng := newEngine(t, "crane")
	ctx := context.Background()
	s, err := eng.StartSingle(ctx, minigame.ActorAction{Realm: "room", Actor: "p", Game: Kind})
	require.NoError(t, err)
	require.Equal(t, minigame.TurnPrimary, s.Turn)
	require.Equal(t, "crane", Secret(s))

	s, err = eng.Act(ctx, minigame.ActorAction{Realm: "room", Actor: "p", Input: "crane"})
	require.NoError(t, err)
	require.Equal(t, minigame.TurnFinished, s.Turn)
	require.Equal(t, DefaultMaxGuesses, s.Scores[minigame.TurnPrimary])
	require.Equal(t, minigame.OutcomeWin, New(nil).Judge(s)[minigame.TurnPrimary])
}

func TestSingleRunsOutOfGuesses(t *testing.T) {
	eng := newEngine(t, "crane", "slate")
	ctx := context.Background()
	s, err := eng.StartSingle(ctx, minigame.ActorAction{Realm: "room", Actor: "p", Game: Kind})
	require.NoError(t, err)
	wrong := "slate"
	if Secret(s) == "slate" {
		wrong = "crane"
	}

	_, err = eng.Act(ctx, minigame.ActorAction{Realm: "room", Actor: "p", Input: "nope!"})
	require.ErrorIs(t, err, minigame.ErrInvalidInput)

	for i := 0; i < DefaultMaxGuesses; i++ {
		s, err = eng.Act(ctx, minigame.ActorAction{Realm: "room", Actor: "p", Input: wrong})
		require.NoError(t, err)
	}
	require.Equal(t, minigame.TurnFinished, s.Turn)
	require.Len(t, Guesses(s), DefaultMaxGuesses)
	_, solved := Solver(s)
	require.False(t, solved)
	require.Equal(t, minigame.OutcomeLoss, New(nil).Judge(s)[minigame.TurnPrimary])
}

func TestPvPSolverWins(t *testing.T) {
	eng := newEngine(t, "crane", "slate")
	ctx := context.Background()
	_, err := eng.ProposeChallenge(ctx, minigame.ActorAction{Realm: "room", Actor: "a", Target: "b", Game: Kind})
	require.NoError(t, err)
	s, err := eng.AcceptChallenge(ctx, minigame.ActorAction{Realm: "room", Actor: "b"})
	require.NoError(t, err)
	require.Equal(t, minigame.TurnChoosing, s.Turn)
	secret := Secret(s)
	wrong := "slate"
	if secret == "slate" {
		wrong = "crane"
	}

	_, err = eng.ChooseFirst(ctx, minigame.ActorAction{Realm: "room", Actor: "a", Input: minigame.ChoiceFirst})
	require.NoError(t, err)
	_, err = eng.Act(ctx, minigame.ActorAction{Realm: "room", Actor: "a", Input: wrong})
	require.NoError(t, err)
	s, err = eng.Act(ctx, minigame.ActorAction{Realm: "room", Actor: "b", Input: secret})
	require.NoError(t, err)
	require.Equal(t, minigame.TurnFinished, s.Turn)

	out := New(nil).Judge(s)
	require.Equal(t, minigame.OutcomeWin, out[minigame.TurnSecondary])
	require.Equal(t, minigame.OutcomeLoss, out[minigame.TurnPrimary])
}

func TestPvPNobodySolvesIsTie(t *testing.T) {
	g := New(nil)
	s := minigame.Session{Mode: minigame.ModePvP, Moves: []minigame.Move{
		{Slot: minigame.TurnPrimary, Detail: Guess{Word: "slate"}},
		{Slot: minigame.TurnSecondary, Detail: Guess{Word: "crane"}},
	}}
	out := g.Judge(s)
	require.Equal(t, minigame.OutcomeTie, out[minigame.TurnPrimary])
	require.Equal(t, minigame.OutcomeTie, out[minigame.TurnSecondary])
}

func TestRules(t *testing.T) {
	g := New(nil, WithMaxGuesses(4))
	require.Equal(t, minigame.Rules{MaxRounds: 4, SlotsPerRound: 1, AutoStart: true}, g.Rules(minigame.ModeSingle))
	require.Equal(t, minigame.Rules{MaxRounds: 4, SlotsPerRound: 2}, g.Rules(minigame.ModePvP))
}
