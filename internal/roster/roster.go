// Package roster remembers who spoke in which room so "@name" mentions can be resolved to
// Kakao user ids.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/kakao-minigame-bot/internal/util"
)

const ttlRoster = 30 * 24 * time.Hour

type Member struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	SeenAt time.Time `json:"seen_at"`
}

type Roster interface {
	Remember(ctx context.Context, room, id, name string) error
	Lookup(ctx context.Context, room, name string) (Member, bool, error)
	Forget(ctx context.Context, room string) error
}

// Redis keeps one hash per room, `roster:{room}`, field = normalized name, value = Member JSON.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb, now: time.Now} }

func (r *Redis) key(room string) string { return "roster:" + strings.TrimSpace(room) }

func (r *Redis) Remember(ctx context.Context, room, id, name string) error {
	field := util.NormalizeName(name)
	if field == "" || strings.TrimSpace(id) == "" {
		return nil
	}
	raw, err := json.Marshal(Member{ID: id, Name: strings.TrimSpace(name), SeenAt: r.now().UTC()})
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.key(room), field, raw)
	pipe.Expire(ctx, r.key(room), ttlRoster)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Lookup(ctx context.Context, room, name string) (Member, bool, error) {
	field := util.NormalizeName(name)
	if field == "" {
		return Member{}, false, nil
	}
	raw, err := r.rdb.HGet(ctx, r.key(room), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return Member{}, false, nil
	}
	if err != nil {
		return Member{}, false, err
	}
	var m Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return Member{}, false, err
	}
	return m, true, nil
}

func (r *Redis) Forget(ctx context.Context, room string) error {
	return r.rdb.Del(ctx, r.key(room)).Err()
}

// Memory is the in-process roster used without Redis.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Member
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{rooms: map[string]map[string]Member{}, now: time.Now}
}

func (m *Memory) Remember(_ context.Context, room, id, name string) error {
	field := util.NormalizeName(name)
	if field == "" || strings.TrimSpace(id) == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.rooms[room]
	if !ok {
		members = map[string]Member{}
		m.rooms[room] = members
	}
	members[field] = Member{ID: id, Name: strings.TrimSpace(name), SeenAt: m.now().UTC()}
	return nil
}

func (m *Memory) Lookup(_ context.Context, room, name string) (Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.rooms[room][util.NormalizeName(name)]
	return mem, ok, nil
}

func (m *Memory) Forget(_ context.Context, room string) error {
	m.mu.Lock()
	delete(m.rooms, room)
	m.mu.Unlock()
	return nil
}
