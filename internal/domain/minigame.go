package domain

import "time"

// GameResult is one row of the append-only result log.
type GameResult struct {
	ID         int64
	Realm      string
	Player     string
	Kind       string
	Outcome    string
	RecordedAt time.Time
}

// PlayerStats is the per realm/player/kind aggregate.
type PlayerStats struct {
	Realm        string
	Player       string
	Kind         string
	Wins         int
	Losses       int
	Ties         int
	Streak       int // consecutive wins
	BestStreak   int
	LastPlayedAt time.Time
}

func (s PlayerStats) Played() int { return s.Wins + s.Losses + s.Ties }

// WinRate in percent, 0 when nothing was played.
func (s PlayerStats) WinRate() int {
	if s.Played() == 0 {
		return 0
	}
	return s.Wins * 100 / s.Played()
}
