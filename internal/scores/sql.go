package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/park285/kakao-minigame-bot/internal/domain"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS minigame_results (
		id BIGSERIAL PRIMARY KEY,
		realm TEXT NOT NULL,
		player TEXT NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		recorded_at_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS minigame_stats (
		realm TEXT NOT NULL,
		player TEXT NOT NULL,
		kind TEXT NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		ties INTEGER NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 0,
		best_streak INTEGER NOT NULL DEFAULT 0,
		last_played_at_ms BIGINT NOT NULL,
		PRIMARY KEY (realm, player, kind)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS minigame_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		realm TEXT NOT NULL,
		player TEXT NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		recorded_at_ms INTEGER NOT NULL
	)`,
	postgresSchema[1],
}

// SQLStore backs Repository with Postgres or SQLite. Queries are written with '?' and
// rebound for Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func NewPostgres(databaseURL string) (*SQLStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	return newSQLStore(db, dialectPostgres)
}

// NewSQLite opens (and creates) a SQLite database file. ":memory:" keeps everything in
// process, on a single connection.
func NewSQLite(path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLStore(db, dialectSQLite)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	stmts := postgresSchema
	if s.dialect == dialectSQLite {
		stmts = sqliteSchema
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind turns '?' placeholders into $1..$n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

const upsertStats = `
	INSERT INTO minigame_stats (realm, player, kind, wins, losses, ties, streak, best_streak, last_played_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (realm, player, kind) DO UPDATE SET
		wins = minigame_stats.wins + excluded.wins,
		losses = minigame_stats.losses + excluded.losses,
		ties = minigame_stats.ties + excluded.ties,
		streak = CASE WHEN excluded.wins > 0 THEN minigame_stats.streak + 1 ELSE 0 END,
		best_streak = CASE
			WHEN excluded.wins > 0 AND minigame_stats.streak + 1 > minigame_stats.best_streak
			THEN minigame_stats.streak + 1
			ELSE minigame_stats.best_streak END,
		last_played_at_ms = excluded.last_played_at_ms`

// Record appends to the result log and folds the outcome into the aggregate in one
// transaction.
func (s *SQLStore) Record(ctx context.Context, realm, player, kind string, outcome minigame.Outcome) error {
	w, l, t, err := counts(outcome)
	if err != nil {
		return err
	}
	ms := s.now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO minigame_results (realm, player, kind, outcome, recorded_at_ms) VALUES (?, ?, ?, ?, ?)`),
		realm, player, kind, string(outcome), ms,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(upsertStats), realm, player, kind, w, l, t, w, w, ms); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	return tx.Commit()
}

const selectStats = `SELECT realm, player, kind, wins, losses, ties, streak, best_streak, last_played_at_ms FROM minigame_stats`

func scanStats(row interface{ Scan(...any) error }) (domain.PlayerStats, error) {
	var st domain.PlayerStats
	var ms int64
	if err := row.Scan(&st.Realm, &st.Player, &st.Kind, &st.Wins, &st.Losses, &st.Ties, &st.Streak, &st.BestStreak, &ms); err != nil {
		return domain.PlayerStats{}, err
	}
	st.LastPlayedAt = time.UnixMilli(ms).UTC()
	return st, nil
}

// Stats returns zero counts for a player that never finished a game.
func (s *SQLStore) Stats(ctx context.Context, realm, player, kind string) (domain.PlayerStats, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectStats+` WHERE realm = ? AND player = ? AND kind = ?`), realm, player, kind)
	st, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerStats{Realm: realm, Player: player, Kind: kind}, nil
	}
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("select stats: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Top(ctx context.Context, realm, kind string, limit int) ([]domain.PlayerStats, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		s.rebind(selectStats+` WHERE realm = ? AND kind = ? ORDER BY wins DESC, losses ASC, last_played_at_ms DESC LIMIT ?`),
		realm, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("select top: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PlayerStats, 0, limit)
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan top: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Results lists the raw result log of a player, newest first.
func (s *SQLStore) Results(ctx context.Context, realm, player string, limit int) ([]domain.GameResult, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, realm, player, kind, outcome, recorded_at_ms FROM minigame_results WHERE realm = ? AND player = ? ORDER BY id DESC LIMIT ?`),
		realm, player, limit)
	if err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	defer rows.Close()
	var out []domain.GameResult
	for rows.Next() {
		var r domain.GameResult
		var ms int64
		if err := rows.Scan(&r.ID, &r.Realm, &r.Player, &r.Kind, &r.Outcome, &ms); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.RecordedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
