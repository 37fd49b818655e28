package minigame

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/obslog"
)

// ResultFinalizer tears down a finished session exactly once: judge, record scores,
// set cooldowns, remove from the store.
type ResultFinalizer struct {
	sessions *SessionStore
	scores   ScoreRecorder
}

func NewResultFinalizer(sessions *SessionStore, scores ScoreRecorder) *ResultFinalizer {
	return &ResultFinalizer{sessions: sessions, scores: scores}
}

// Finalize claims the session under the store lock and then runs every side effect
// without it. It returns false when the session was already claimed, removed, or is not
// finished yet, so a second call is a no-op.
func (f *ResultFinalizer) Finalize(ctx context.Context, g Game, gate *CooldownGate, k Key, id string) (Session, map[Turn]Outcome, bool) {
	snap, ok := f.sessions.claimFinalize(k, id)
	if !ok {
		return Session{}, nil, false
	}
	outcomes := g.Judge(snap)
	for _, slot := range []Turn{TurnPrimary, TurnSecondary} {
		if snap.Automated(slot) {
			continue
		}
		player := snap.PlayerAt(slot)
		if player == "" {
			continue
		}
		if f.scores != nil {
			if err := f.scores.Record(ctx, snap.Realm, player, snap.Kind, outcomes[slot]); err != nil {
				obslog.L().Warn("score_record_error",
					zap.String("session_id", snap.ID), zap.String("player", player), zap.Error(err))
			}
		}
		if err := gate.set(ctx, snap.Realm, player); err != nil {
			obslog.L().Warn("cooldown_set_error",
				zap.String("session_id", snap.ID), zap.String("player", player), zap.Error(err))
		}
	}
	f.sessions.Remove(k, id)
	obslog.L().Info("session_finalized",
		zap.String("session_id", snap.ID),
		zap.String("realm", snap.Realm),
		zap.String("kind", snap.Kind),
		zap.Int("score_primary", snap.Scores[TurnPrimary]),
		zap.Int("score_secondary", snap.Scores[TurnSecondary]),
		zap.String("outcome_primary", string(outcomes[TurnPrimary])))
	return snap, outcomes, true
}
