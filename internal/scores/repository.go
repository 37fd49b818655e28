// Package scores persists finished-game outcomes and per-player aggregates.
package scores

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/kakao-minigame-bot/internal/domain"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

type Repository interface {
	minigame.ScoreRecorder
	Stats(ctx context.Context, realm, player, kind string) (domain.PlayerStats, error)
	Top(ctx context.Context, realm, kind string, limit int) ([]domain.PlayerStats, error)
	Close() error
}

const defaultTopLimit = 10

// Open picks the backend from DATABASE_URL: postgres:// → Postgres, sqlite:// or a file path
// → SQLite, empty → in-memory.
func Open(databaseURL string) (Repository, error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case u == "":
		return NewMemory(), nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return NewPostgres(u)
	case strings.HasPrefix(u, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(u, "sqlite://"))
	case strings.HasPrefix(u, "file:"), strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"):
		return NewSQLite(u)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", u)
	}
}

// counts turns an outcome into the wins/losses/ties increments.
func counts(o minigame.Outcome) (int, int, int, error) {
	switch o {
	case minigame.OutcomeWin:
		return 1, 0, 0, nil
	case minigame.OutcomeLoss:
		return 0, 1, 0, nil
	case minigame.OutcomeTie:
		return 0, 0, 1, nil
	default:
		return 0, 0, 0, fmt.Errorf("unknown outcome %q", o)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return defaultTopLimit
	}
	return limit
}
