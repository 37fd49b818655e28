package minigame

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type harness struct {
	eng       *Engine
	game      *scriptGame
	presenter *recordingPresenter
	scores    *recordingScores
	cooldown  *fakeCooldown
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		game:      newScriptGame("dice", 3),
		presenter: &recordingPresenter{},
		scores:    &recordingScores{},
		cooldown:  newFakeCooldown(),
	}
	base := []Option{
		WithPresenter(h.presenter),
		WithScores(h.scores),
		WithCooldown("dice", h.cooldown),
	}
	h.eng = New([]Game{h.game}, append(base, opts...)...)
	t.Cleanup(h.eng.Close)
	return h
}

func TestEngine_DiceSingleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)
	require.Equal(t, ModeSingle, s.Mode)
	require.Equal(t, TurnChoosing, s.Turn)
	require.Equal(t, "yes", s.Data["setup"])

	s, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P", Input: ChoiceFirst})
	require.NoError(t, err)
	require.Equal(t, 1, s.Round)
	require.Equal(t, TurnPrimary, s.Turn)

	// the human act is followed by the automated one in the same call
	s, err = h.eng.Act(ctx, act("room", "P", ActionAct))
	require.NoError(t, err)
	require.Len(t, s.Moves, 2)
	require.Equal(t, TurnPrimary, s.Moves[0].Slot)
	require.Equal(t, TurnSecondary, s.Moves[1].Slot)
	require.Equal(t, 1, s.Round)
	require.Equal(t, TurnPrimary, s.Turn)

	for i := 0; i < 2; i++ {
		s, err = h.eng.Act(ctx, act("room", "P", ActionAct))
		require.NoError(t, err)
	}
	require.Equal(t, TurnFinished, s.Turn)
	require.Equal(t, 3, s.Round)
	require.Len(t, s.Moves, 6)

	_, ok := h.eng.Session("room", "P")
	require.False(t, ok)
	require.Equal(t, 1, h.presenter.count(EventSessionFinished))
	// automated opponent is never recorded
	require.Equal(t, []record{{"room", "P", "dice", OutcomeLoss}}, h.scores.all())
	require.Equal(t, []string{"P"}, h.cooldown.setCalls())

	_, err = h.eng.Act(ctx, act("room", "P", ActionAct))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ChooseSecondDrivesAutomatedOpponent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)

	s, err := h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P", Input: ChoiceSecond})
	require.NoError(t, err)
	require.Equal(t, TurnSecondary, s.Starter)
	require.Len(t, s.Moves, 1)
	require.Equal(t, TurnPrimary, s.Turn)

	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P", Input: ChoiceFirst})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestEngine_ConcurrentStartSingleExactlyOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	errs := make([]error, 32)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyActive)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, h.eng.Stats().Sessions)
}

func TestEngine_ConcurrentAcceptAndStartExactlyOne(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		ctx := context.Background()
		_, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, startErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A"})
		}()
		go func() {
			defer wg.Done()
			_, startErr = h.eng.StartSingle(ctx, act("room", "B", ActionStartSingle))
		}()
		wg.Wait()

		require.True(t, (acceptErr == nil) != (startErr == nil), "accept=%v start=%v", acceptErr, startErr)
		live := h.eng.Sessions("room")
		require.Len(t, live, 1)
	}
}

func TestEngine_PvPFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ch, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", ActorName: "Alice", Target: "B", TargetName: "Bob", Game: "dice"})
	require.NoError(t, err)
	require.Equal(t, "A", ch.Challenger)
	require.Len(t, h.eng.PendingFor("room", "B"), 1)

	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B"})
	require.ErrorIs(t, err, ErrNotYourChallenge)

	s, err := h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B"})
	require.NoError(t, err)
	require.Equal(t, ModePvP, s.Mode)
	require.Equal(t, "A", s.Primary)
	require.Equal(t, "B", s.Secondary)
	require.Equal(t, "Bob", s.NameOf("B"))
	require.Empty(t, h.eng.PendingFor("room", "B"))

	// both keys point at the same session
	sa, ok := h.eng.Session("room", "A")
	require.True(t, ok)
	sb, ok := h.eng.Session("room", "B")
	require.True(t, ok)
	require.Equal(t, sa.ID, sb.ID)

	_, err = h.eng.Act(ctx, act("room", "A", ActionAct))
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "B", Input: ChoiceFirst})
	require.NoError(t, err)

	_, err = h.eng.Act(ctx, act("room", "A", ActionAct))
	require.ErrorIs(t, err, ErrNotYourTurn)

	players := []string{"B", "A", "B", "A", "B", "A"}
	for _, p := range players {
		s, err = h.eng.Act(ctx, act("room", p, ActionAct))
		require.NoError(t, err, p)
	}
	require.Equal(t, TurnFinished, s.Turn)
	_, ok = h.eng.Session("room", "A")
	require.False(t, ok)
	_, ok = h.eng.Session("room", "B")
	require.False(t, ok)

	recs := h.scores.all()
	require.Len(t, recs, 2)
	// secondary scores 2 per act and wins
	require.ElementsMatch(t, []record{{"room", "A", "dice", OutcomeLoss}, {"room", "B", "dice", OutcomeWin}}, recs)
	require.ElementsMatch(t, []string{"A", "B"}, h.cooldown.setCalls())
	require.Equal(t, 1, h.presenter.count(EventSessionFinished))
}

func TestEngine_PvPTieFinalizesBoth(t *testing.T) {
	h := newHarness(t)
	h.game.even = true
	ctx := context.Background()

	_, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)
	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B"})
	require.NoError(t, err)
	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "B", Input: ChoiceSecond})
	require.NoError(t, err)

	var s Session
	for _, p := range []string{"A", "B", "A", "B", "A", "B"} {
		s, err = h.eng.Act(ctx, act("room", p, ActionAct))
		require.NoError(t, err, p)
	}
	require.Equal(t, TurnFinished, s.Turn)
	require.Equal(t, s.Scores[TurnPrimary], s.Scores[TurnSecondary])

	require.ElementsMatch(t, []record{{"room", "A", "dice", OutcomeTie}, {"room", "B", "dice", OutcomeTie}}, h.scores.all())
	require.Equal(t, []string{"A", "B"}, h.cooldown.setCalls())
	_, ok := h.eng.Session("room", "A")
	require.False(t, ok)
	_, ok = h.eng.Session("room", "B")
	require.False(t, ok)
	require.Equal(t, 1, h.presenter.count(EventSessionFinished))
}

func TestEngine_ActWithOtherGameCommandIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)
	before, err := h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P", Input: ChoiceFirst})
	require.NoError(t, err)

	s, err := h.eng.Act(ctx, ActorAction{Realm: "room", Actor: "P", Kind: ActionAct, Game: "wordle", Input: "hello"})
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, "dice", s.Kind)
	require.Empty(t, s.Moves)
	require.Zero(t, h.game.calls)

	after, ok := h.eng.Session("room", "P")
	require.True(t, ok)
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, after.Moves)

	// an empty Game still means "whatever I am playing"
	s, err = h.eng.Act(ctx, ActorAction{Realm: "room", Actor: "P", Kind: ActionAct})
	require.NoError(t, err)
	require.Len(t, s.Moves, 2)
}

func TestEngine_ChallengeRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "A", Game: "dice"})
	require.ErrorIs(t, err, ErrSelfChallenge)

	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "chess"})
	require.ErrorIs(t, err, ErrUnknownGame)

	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.ErrorIs(t, err, ErrAlreadyPending)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A", Game: "dice"})
	require.ErrorIs(t, err, ErrAlreadyPending)

	// same pair in another realm is independent
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "other", Actor: "B", Target: "A", Game: "dice"})
	require.NoError(t, err)

	// a pending challenge blocks a solo start for its participants
	_, err = h.eng.StartSingle(ctx, act("room", "B", ActionStartSingle))
	require.ErrorIs(t, err, ErrAlreadyPending)

	_, err = h.eng.StartSingle(ctx, act("room", "C", ActionStartSingle))
	require.NoError(t, err)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "C", Target: "D", Game: "dice"})
	require.ErrorIs(t, err, ErrParticipantBusy)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "D", Target: "C", Game: "dice"})
	require.ErrorIs(t, err, ErrParticipantBusy)

	_, err = h.eng.DeclineChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B"})
	require.ErrorIs(t, err, ErrNotYourChallenge)
	ch, err := h.eng.DeclineChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A"})
	require.NoError(t, err)
	require.Equal(t, "A", ch.Challenger)
	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, h.presenter.count(EventChallengeDeclined))
}

func TestEngine_AcceptCancelsOtherChallenges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "C", Target: "A", Game: "dice"})
	require.NoError(t, err)

	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A"})
	require.NoError(t, err)
	require.Empty(t, h.eng.PendingFor("room", "A"))
	require.Equal(t, 0, h.eng.Stats().Challenges)
}

func TestEngine_ChallengeExpiry(t *testing.T) {
	h := newHarness(t, WithChallengeTTL(20*time.Millisecond))
	ctx := context.Background()
	ch, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.presenter.expiredFor(ch.ID) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, h.eng.Stats().Challenges)
	_, ok := h.eng.Session("room", "A")
	require.False(t, ok)
	_, ok = h.eng.Session("room", "B")
	require.False(t, ok)

	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B", Target: "A"})
	require.ErrorIs(t, err, ErrNotFound)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, h.presenter.expiredFor(ch.ID))
}

func TestEngine_AcceptRacingExpiry(t *testing.T) {
	h := newHarness(t, WithChallengeTTL(2*time.Millisecond))
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		a, b := fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)
		ch, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: a, Target: b, Game: "dice"})
		require.NoError(t, err)
		time.Sleep(time.Duration(i%4) * time.Millisecond)
		_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: b, Target: a})

		if err == nil {
			_, ok := h.eng.Session("room", a)
			require.True(t, ok)
			time.Sleep(3 * time.Millisecond)
			require.Equal(t, 0, h.presenter.expiredFor(ch.ID), "iteration %d", i)
			continue
		}
		require.True(t, errors.Is(err, ErrExpired) || errors.Is(err, ErrNotFound), "iteration %d: %v", i, err)
		_, ok := h.eng.Session("room", a)
		require.False(t, ok)
		require.Eventually(t, func() bool { return h.presenter.expiredFor(ch.ID) == 1 }, time.Second, time.Millisecond)
		time.Sleep(3 * time.Millisecond)
		require.Equal(t, 1, h.presenter.expiredFor(ch.ID), "iteration %d", i)
	}
}

func TestEngine_CooldownBlocksStartOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.cooldown.remaining["P"] = 90 * time.Second

	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.ErrorIs(t, err, ErrOnCooldown)
	var ce *CooldownError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, "P", ce.Player)
	require.Equal(t, 90*time.Second, ce.Remaining)

	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "P", Game: "dice"})
	require.ErrorIs(t, err, ErrOnCooldown)
	require.Empty(t, h.cooldown.setCalls())
}

func TestEngine_CooldownStoreFailureAllowsStart(t *testing.T) {
	h := newHarness(t)
	h.cooldown.failCheck = true
	_, err := h.eng.StartSingle(context.Background(), act("room", "P", ActionStartSingle))
	require.NoError(t, err)
}

func TestEngine_PresenterFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.presenter.fail = true
	ctx := context.Background()
	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)
	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P"})
	require.NoError(t, err)
	s, err := h.eng.Act(ctx, act("room", "P", ActionAct))
	require.NoError(t, err)
	require.Len(t, s.Moves, 2)
}

func TestEngine_DuplicateActsApplyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.ProposeChallenge(ctx, ActorAction{Realm: "room", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)
	_, err = h.eng.AcceptChallenge(ctx, ActorAction{Realm: "room", Actor: "B"})
	require.NoError(t, err)
	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "A", Input: ChoiceFirst})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.eng.Act(ctx, act("room", "A", ActionAct)); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, ok)
	s, _ := h.eng.Session("room", "A")
	require.Len(t, s.Moves, 1)
	require.Equal(t, TurnSecondary, s.Turn)
}

func TestEngine_InvalidInputKeepsTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)
	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P"})
	require.NoError(t, err)

	a := act("room", "P", ActionAct)
	a.Input = "bad"
	_, err = h.eng.Act(ctx, a)
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	s, _ := h.eng.Session("room", "P")
	require.Equal(t, TurnPrimary, s.Turn)
	require.Empty(t, s.Moves)
}

func TestEngine_FinalizeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.StartSingle(ctx, act("room", "P", ActionStartSingle))
	require.NoError(t, err)
	_, err = h.eng.ChooseFirst(ctx, ActorAction{Realm: "room", Actor: "P"})
	require.NoError(t, err)

	k := Key{Realm: "room", Player: "P"}
	snap, _ := h.eng.Session("room", "P")
	_, err = h.eng.sessions.Update(k, snap.ID, func(s *Session) error {
		s.Turn = TurnFinished
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, ok := h.eng.finalizer.Finalize(ctx, h.game, h.eng.gate("dice"), k, snap.ID); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)
	require.Len(t, h.scores.all(), 1)
	require.Len(t, h.cooldown.setCalls(), 1)

	_, _, ok := h.eng.finalizer.Finalize(ctx, h.game, h.eng.gate("dice"), k, snap.ID)
	require.False(t, ok)
}

func TestEngine_DropRealmAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	h := newHarness(t, WithClock(clock))
	ctx := context.Background()

	_, err := h.eng.StartSingle(ctx, act("r1", "P", ActionStartSingle))
	require.NoError(t, err)
	_, err = h.eng.ProposeChallenge(ctx, ActorAction{Realm: "r1", Actor: "A", Target: "B", Game: "dice"})
	require.NoError(t, err)
	_, err = h.eng.StartSingle(ctx, act("r2", "Q", ActionStartSingle))
	require.NoError(t, err)

	ss, chs := h.eng.DropRealm("r1")
	require.Len(t, ss, 1)
	require.Len(t, chs, 1)
	require.Empty(t, h.scores.all())
	require.Empty(t, h.cooldown.setCalls())
	require.Equal(t, 1, h.eng.Stats().Sessions)

	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()
	require.Empty(t, h.eng.SweepIdle(time.Hour))
	removed := h.eng.SweepIdle(5 * time.Minute)
	require.Len(t, removed, 1)
	require.Equal(t, "Q", removed[0].Primary)
	require.Equal(t, 0, h.eng.Stats().Sessions)
}
