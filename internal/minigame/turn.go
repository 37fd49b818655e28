package minigame

import (
	"context"
	"time"
)

// TurnEngine validates and advances whose turn it is. The topology is fixed:
// choosing → starter → other → ... until the last slot of round MaxRounds acts → finished.
// Round moves forward when the starter opens the next round, so after a full alternation
// Round still names the round that just completed. Game-specific effects come from the
// injected Game.
type TurnEngine struct {
	now func() time.Time
}

func NewTurnEngine() *TurnEngine {
	return &TurnEngine{now: time.Now}
}

// Begin initialises a fresh session for game g. AutoStart games go straight to the primary.
func (te *TurnEngine) Begin(s *Session, g Game) error {
	s.Turn = TurnChoosing
	s.Round = 0
	s.ActedInRound = 0
	s.Scores = map[Turn]int{TurnPrimary: 0, TurnSecondary: 0}
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	if err := g.Setup(s); err != nil {
		return err
	}
	if g.Rules(s.Mode).AutoStart {
		return te.ChooseFirst(s, TurnPrimary)
	}
	return nil
}

// ChooseFirst is valid only while choosing; it opens round 1 with the chosen starter.
func (te *TurnEngine) ChooseFirst(s *Session, choice Turn) error {
	if s.Turn != TurnChoosing {
		if s.Turn == TurnFinished {
			return ErrGameFinished
		}
		return ErrInvalidState
	}
	if !choice.isSlot() {
		return ErrInvalidArgs
	}
	s.Round = 1
	s.ActedInRound = 0
	s.Starter = choice
	s.Turn = choice
	te.touch(s)
	return nil
}

// Check tells whether slot may act now.
func (te *TurnEngine) Check(s *Session, slot Turn) error {
	switch {
	case s.Turn == TurnFinished:
		return ErrGameFinished
	case s.Turn == TurnChoosing:
		return ErrInvalidState
	case slot != s.Turn:
		return ErrNotYourTurn
	}
	return nil
}

// Prepare validates the turn on a snapshot and resolves the game effect. It does not
// mutate anything and may be called without holding any lock.
func (te *TurnEngine) Prepare(ctx context.Context, g Game, s Session, slot Turn, input string) (Effect, error) {
	if err := te.Check(&s, slot); err != nil {
		return Effect{}, err
	}
	return g.Resolve(ctx, s, slot, input)
}

// Apply commits a prepared effect. version must match the snapshot the effect was computed
// on; otherwise the act is re-validated against the live state and rejected. It reports
// whether this call moved the session into finished.
func (te *TurnEngine) Apply(s *Session, rules Rules, slot Turn, version int, eff Effect) (bool, error) {
	if err := te.Check(s, slot); err != nil {
		return false, err
	}
	if s.Version != version {
		// someone else's act landed in between and it is our turn again
		return false, ErrNotYourTurn
	}
	rules = rules.normalized()
	if s.ActedInRound >= rules.SlotsPerRound {
		// the previous round is complete; this act opens the next one
		s.Round++
		s.ActedInRound = 0
	}

	s.Scores[slot] += eff.Points
	s.Moves = append(s.Moves, Move{
		Round:  s.Round,
		Slot:   slot,
		Player: s.PlayerAt(slot),
		Points: eff.Points,
		Detail: eff.Detail,
	})
	s.ActedInRound++

	switch {
	case eff.EndsGame:
		s.Turn = TurnFinished
	case s.ActedInRound >= rules.SlotsPerRound:
		if s.Round >= rules.MaxRounds {
			s.Turn = TurnFinished
		} else {
			s.Turn = s.Starter
		}
	default:
		s.Turn = slot.Other()
	}
	te.touch(s)
	return s.Turn == TurnFinished, nil
}

// Act runs Prepare and Apply back to back on s. It is the single-threaded form used when
// the caller already serialises access to s.
func (te *TurnEngine) Act(ctx context.Context, g Game, s *Session, slot Turn, input string) (Effect, bool, error) {
	eff, err := te.Prepare(ctx, g, s.Clone(), slot, input)
	if err != nil {
		return Effect{}, false, err
	}
	finished, err := te.Apply(s, g.Rules(s.Mode), slot, s.Version, eff)
	return eff, finished, err
}

func (te *TurnEngine) touch(s *Session) {
	s.Version++
	s.UpdatedAt = te.now()
}
