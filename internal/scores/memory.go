package scores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/park285/kakao-minigame-bot/internal/domain"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

type statsKey struct{ realm, player, kind string }

// Memory is the Repository used when no database is configured. Nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	stats map[statsKey]*domain.PlayerStats
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{stats: make(map[statsKey]*domain.PlayerStats), now: time.Now}
}

func (m *Memory) Record(_ context.Context, realm, player, kind string, outcome minigame.Outcome) error {
	w, l, t, err := counts(outcome)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := statsKey{realm, player, kind}
	st, ok := m.stats[k]
	if !ok {
		st = &domain.PlayerStats{Realm: realm, Player: player, Kind: kind}
		m.stats[k] = st
	}
	st.Wins += w
	st.Losses += l
	st.Ties += t
	if w > 0 {
		st.Streak++
		if st.Streak > st.BestStreak {
			st.BestStreak = st.Streak
		}
	} else {
		st.Streak = 0
	}
	st.LastPlayedAt = m.now().UTC()
	return nil
}

func (m *Memory) Stats(_ context.Context, realm, player, kind string) (domain.PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stats[statsKey{realm, player, kind}]; ok {
		return *st, nil
	}
	return domain.PlayerStats{Realm: realm, Player: player, Kind: kind}, nil
}

func (m *Memory) Top(_ context.Context, realm, kind string, limit int) ([]domain.PlayerStats, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	var out []domain.PlayerStats
	for k, st := range m.stats {
		if k.realm == realm && k.kind == kind {
			out = append(out, *st)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.LastPlayedAt.After(b.LastPlayedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
