package minigame

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/obslog"
)

// CooldownGate answers whether a player may start a new game now. It never mutates
// anything on the check path; Set is reserved for the ResultFinalizer.
type CooldownGate struct {
	store Cooldown
}

func NewCooldownGate(store Cooldown) *CooldownGate {
	return &CooldownGate{store: store}
}

// Check returns a *CooldownError for the first player still cooling down. A failing
// backing store is logged and treated as "no cooldown".
func (g *CooldownGate) Check(ctx context.Context, realm string, players ...string) error {
	if g == nil || g.store == nil {
		return nil
	}
	for _, p := range players {
		if p == "" {
			continue
		}
		remaining, err := g.store.Check(ctx, realm, p)
		if err != nil {
			obslog.L().Warn("cooldown_check_error", zap.String("realm", realm), zap.String("player", p), zap.Error(err))
			continue
		}
		if remaining > 0 {
			return &CooldownError{Player: p, Remaining: remaining}
		}
	}
	return nil
}

func (g *CooldownGate) set(ctx context.Context, realm, player string) error {
	if g == nil || g.store == nil || player == "" {
		return nil
	}
	return g.store.Set(ctx, realm, player)
}
