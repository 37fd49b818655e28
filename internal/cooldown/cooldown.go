// Package cooldown stores when a player last finished a game, per game kind.
package cooldown

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// remaining is what is left of window since last, never negative.
func remaining(last, now time.Time, window time.Duration) time.Duration {
	if window <= 0 || last.IsZero() {
		return 0
	}
	left := window - now.Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

// Redis keeps `cooldown:{kind}:{realm}:{player}` = last-played unix millis with a TTL equal
// to the window, so stale entries clean themselves up.
type Redis struct {
	rdb    *redis.Client
	kind   string
	window time.Duration
	now    func() time.Time
}

func NewRedis(rdb *redis.Client, kind string, window time.Duration) *Redis {
	return &Redis{rdb: rdb, kind: kind, window: window, now: time.Now}
}

func (c *Redis) key(realm, player string) string {
	return "cooldown:" + c.kind + ":" + strings.TrimSpace(realm) + ":" + strings.TrimSpace(player)
}

func (c *Redis) Check(ctx context.Context, realm, player string) (time.Duration, error) {
	if c.window <= 0 {
		return 0, nil
	}
	raw, err := c.rdb.Get(ctx, c.key(realm, player)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return remaining(time.UnixMilli(ms), c.now(), c.window), nil
}

func (c *Redis) Set(ctx context.Context, realm, player string) error {
	if c.window <= 0 {
		return nil
	}
	now := c.now()
	return c.rdb.Set(ctx, c.key(realm, player), strconv.FormatInt(now.UnixMilli(), 10), c.window).Err()
}

// Memory is the in-process variant used when REDIS_URL is empty.
type Memory struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemory(window time.Duration) *Memory {
	return &Memory{last: make(map[string]time.Time), window: window, now: time.Now}
}

// WithClock replaces the clock (tests).
func (c *Memory) WithClock(now func() time.Time) *Memory {
	c.now = now
	return c
}

func (c *Memory) Check(_ context.Context, realm, player string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := realm + "\x00" + player
	left := remaining(c.last[k], c.now(), c.window)
	if left == 0 {
		delete(c.last, k)
	}
	return left, nil
}

func (c *Memory) Set(_ context.Context, realm, player string) error {
	if c.window <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[realm+"\x00"+player] = c.now()
	return nil
}
