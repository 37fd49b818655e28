// Package gamebuilder wires configuration into a ready engine, presenter and chat handler.
package gamebuilder

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/adapter/gamepresenter"
	"github.com/park285/kakao-minigame-bot/internal/bot"
	"github.com/park285/kakao-minigame-bot/internal/config"
	"github.com/park285/kakao-minigame-bot/internal/cooldown"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/minigame/dice"
	"github.com/park285/kakao-minigame-bot/internal/minigame/wordle"
	"github.com/park285/kakao-minigame-bot/internal/msgcat"
	"github.com/park285/kakao-minigame-bot/internal/roster"
	"github.com/park285/kakao-minigame-bot/internal/scores"
)

type Deps struct {
	Engine    *minigame.Engine
	Presenter *gamepresenter.Presenter
	Handler   *bot.Handler
	Scores    scores.Repository
	Roster    roster.Roster
	Redis     *redis.Client // nil without REDIS_URL
}

// New builds everything behind the chat transport. out receives every outbound message
// (normally an irisfast.Egress).
func New(cfg *config.AppConfig, out gamepresenter.Sender, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if out == nil {
		return nil, errors.New("nil sender")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	// Redis (optional): cooldowns and the mention roster fall back to memory
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Redis = rdb
		d.Roster = roster.NewRedis(rdb)
	} else {
		logger.Info("redis_disabled", zap.String("fallback", "memory"))
		d.Roster = roster.NewMemory()
	}

	repo, err := scores.Open(cfg.DatabaseURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open scores: %w", err)
	}
	d.Scores = repo

	dict := wordle.DefaultWordList()
	if cfg.WordListPath != "" {
		if dict, err = wordle.LoadWordList(cfg.WordListPath); err != nil {
			d.Close()
			return nil, fmt.Errorf("load word list: %w", err)
		}
	}
	games := []minigame.Game{
		dice.New(dice.WithRounds(cfg.DiceRounds)),
		wordle.New(dict, wordle.WithMaxGuesses(cfg.WordleMaxGuesses)),
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	formatter := gamepresenter.NewFormatter(cat, cfg.BotPrefix, cfg.ChallengeTTL, games...)
	d.Presenter = gamepresenter.NewPresenter(out, formatter)

	opts := []minigame.Option{
		minigame.WithPresenter(d.Presenter),
		minigame.WithScores(repo),
		minigame.WithChallengeTTL(cfg.ChallengeTTL),
	}
	for kind, window := range map[string]time.Duration{dice.Kind: cfg.DiceCooldown, wordle.Kind: cfg.WordleCooldown} {
		if window <= 0 {
			continue
		}
		if d.Redis != nil {
			opts = append(opts, minigame.WithCooldown(kind, cooldown.NewRedis(d.Redis, kind, window)))
		} else {
			opts = append(opts, minigame.WithCooldown(kind, cooldown.NewMemory(window)))
		}
	}
	d.Engine = minigame.New(games, opts...)
	d.Handler = bot.NewHandler(cfg, d.Engine, formatter, d.Presenter, bot.WithStats(repo), bot.WithRoster(d.Roster))

	logger.Info("minigame_ready",
		zap.Strings("games", d.Engine.Kinds()),
		zap.Bool("redis", d.Redis != nil),
		zap.Duration("challenge_ttl", cfg.ChallengeTTL))
	return d, nil
}

// Close stops challenge timers and releases the stores.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Engine != nil {
		d.Engine.Close()
	}
	if d.Scores != nil {
		_ = d.Scores.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: net.JoinHostPort(host, portStr), Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
