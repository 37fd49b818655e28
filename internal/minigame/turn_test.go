package minigame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func freshSession(t *testing.T, g Game, mode Mode) *Session {
	t.Helper()
	s := &Session{ID: "s1", Realm: "room", Kind: g.Kind(), Mode: mode, Primary: "p1", Data: map[string]string{}}
	if mode == ModePvP {
		s.Secondary = "p2"
	}
	require.NoError(t, NewTurnEngine().Begin(s, g))
	return s
}

func TestTurn_ChooseFirstOnlyWhileChoosing(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.Equal(t, TurnChoosing, s.Turn)
	require.Equal(t, 0, s.Round)

	_, _, err := te.Act(context.Background(), g, s, TurnPrimary, "")
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, te.ChooseFirst(s, TurnSecondary))
	require.Equal(t, 1, s.Round)
	require.Equal(t, TurnSecondary, s.Turn)
	require.Equal(t, TurnSecondary, s.Starter)

	require.ErrorIs(t, te.ChooseFirst(s, TurnPrimary), ErrInvalidState)
	require.ErrorIs(t, te.ChooseFirst(&Session{Turn: TurnChoosing}, TurnFinished), ErrInvalidArgs)
}

func TestTurn_ExactlyOneActiveSlot(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.NoError(t, te.ChooseFirst(s, TurnPrimary))

	ctx := context.Background()
	for s.Turn != TurnFinished {
		active := s.Turn
		_, _, err := te.Act(ctx, g, s, active.Other(), "")
		require.ErrorIs(t, err, ErrNotYourTurn)
		_, _, err = te.Act(ctx, g, s, active, "")
		require.NoError(t, err)
	}
	_, _, err := te.Act(ctx, g, s, TurnPrimary, "")
	require.ErrorIs(t, err, ErrGameFinished)
}

func TestTurn_RoundAdvancesOnlyAfterBothSlots(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModeSingle)
	require.NoError(t, te.ChooseFirst(s, TurnPrimary))
	ctx := context.Background()

	type step struct {
		slot     Turn
		round    int
		next     Turn
		finished bool
	}
	steps := []step{
		{TurnPrimary, 1, TurnSecondary, false},
		{TurnSecondary, 1, TurnPrimary, false},
		{TurnPrimary, 2, TurnSecondary, false},
		{TurnSecondary, 2, TurnPrimary, false},
		{TurnPrimary, 3, TurnSecondary, false},
		{TurnSecondary, 3, TurnFinished, true},
	}
	prevRound := s.Round
	for i, st := range steps {
		_, finished, err := te.Act(ctx, g, s, st.slot, "")
		require.NoError(t, err, "step %d", i)
		require.Equal(t, st.round, s.Round, "step %d", i)
		require.Equal(t, st.next, s.Turn, "step %d", i)
		require.Equal(t, st.finished, finished, "step %d", i)
		require.GreaterOrEqual(t, s.Round, prevRound)
		prevRound = s.Round
	}
	require.Len(t, s.Moves, 6)
	require.Equal(t, 3, s.Scores[TurnPrimary])
	require.Equal(t, 6, s.Scores[TurnSecondary])
}

func TestTurn_SecondStarterKeepsTopology(t *testing.T) {
	g := newScriptGame("dice", 2)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.NoError(t, te.ChooseFirst(s, TurnSecondary))
	ctx := context.Background()
	order := []Turn{TurnSecondary, TurnPrimary, TurnSecondary, TurnPrimary}
	for _, slot := range order {
		require.Equal(t, slot, s.Turn)
		_, _, err := te.Act(ctx, g, s, slot, "")
		require.NoError(t, err)
	}
	require.Equal(t, TurnFinished, s.Turn)
	require.Equal(t, 2, s.Round)
}

func TestTurn_SingleSlotRounds(t *testing.T) {
	g := &scriptGame{kind: "word", rules: Rules{MaxRounds: 3, SlotsPerRound: 1, AutoStart: true}, points: 0}
	te := NewTurnEngine()
	s := freshSession(t, g, ModeSingle)
	require.Equal(t, TurnPrimary, s.Turn)
	require.Equal(t, 1, s.Round)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, finished, err := te.Act(ctx, g, s, TurnPrimary, "")
		require.NoError(t, err)
		require.Equal(t, i, s.Round)
		require.Equal(t, i == 3, finished)
	}
}

func TestTurn_InputErrorDoesNotConsumeTurn(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.NoError(t, te.ChooseFirst(s, TurnPrimary))
	v := s.Version
	_, _, err := te.Act(context.Background(), g, s, TurnPrimary, "bad")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, TurnPrimary, s.Turn)
	require.Equal(t, v, s.Version)
	require.Empty(t, s.Moves)
}

func TestTurn_EndsGameEarly(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.NoError(t, te.ChooseFirst(s, TurnPrimary))
	_, finished, err := te.Act(context.Background(), g, s, TurnPrimary, "end")
	require.NoError(t, err)
	require.True(t, finished)
	require.Equal(t, TurnFinished, s.Turn)
}

func TestTurn_StaleApplyRejected(t *testing.T) {
	g := newScriptGame("dice", 3)
	te := NewTurnEngine()
	s := freshSession(t, g, ModePvP)
	require.NoError(t, te.ChooseFirst(s, TurnPrimary))
	ctx := context.Background()

	snap := s.Clone()
	eff, err := te.Prepare(ctx, g, snap, TurnPrimary, "")
	require.NoError(t, err)
	// two full acts land before the stale apply; it is primary's turn again
	_, _, err = te.Act(ctx, g, s, TurnPrimary, "")
	require.NoError(t, err)
	_, _, err = te.Act(ctx, g, s, TurnSecondary, "")
	require.NoError(t, err)
	require.Equal(t, TurnPrimary, s.Turn)

	_, err = te.Apply(s, g.Rules(ModePvP), TurnPrimary, snap.Version, eff)
	require.ErrorIs(t, err, ErrNotYourTurn)
	require.Len(t, s.Moves, 2)
}
