package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	EgressMode   string // http | ws | auto
	EgressDryRun bool

	ChallengeTTL     time.Duration
	SessionIdleTTL   time.Duration
	JanitorInterval  time.Duration
	DiceRounds       int
	DiceCooldown     time.Duration
	WordleMaxGuesses int
	WordleCooldown   time.Duration
	WordListPath     string

	MessagesDir string
	AdminAddr   string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EgressMode:       "auto",
		ChallengeTTL:     30 * time.Second,
		SessionIdleTTL:   30 * time.Minute,
		JanitorInterval:  time.Minute,
		DiceRounds:       3,
		WordleMaxGuesses: 6,
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.AllowedRooms = splitList(os.Getenv("ALLOWED_ROOMS"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v == "http" || v == "ws" || v == "auto" {
		cfg.EgressMode = v
	}
	if v := strings.TrimSpace(os.Getenv("EGRESS_DRYRUN")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EgressDryRun = b
		}
	}

	cfg.ChallengeTTL = seconds("CHALLENGE_TTL_SEC", cfg.ChallengeTTL)
	cfg.SessionIdleTTL = seconds("SESSION_IDLE_TTL_SEC", cfg.SessionIdleTTL)
	cfg.JanitorInterval = seconds("JANITOR_INTERVAL_SEC", cfg.JanitorInterval)
	cfg.DiceRounds = positiveInt("DICE_ROUNDS", cfg.DiceRounds)
	cfg.DiceCooldown = seconds("DICE_COOLDOWN_SEC", cfg.DiceCooldown)
	cfg.WordleMaxGuesses = positiveInt("WORDLE_MAX_GUESSES", cfg.WordleMaxGuesses)
	cfg.WordleCooldown = seconds("WORDLE_COOLDOWN_SEC", cfg.WordleCooldown)
	cfg.WordListPath = strings.TrimSpace(os.Getenv("WORDLIST_PATH"))

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.AdminAddr = strings.TrimSpace(os.Getenv("ADMIN_ADDR"))

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}

	return cfg, nil
}

// RoomAllowed reports whether the bot answers in room. An empty list allows every room.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// seconds reads a non-negative integer number of seconds. Zero is kept (it disables
// cooldowns and the janitor).
func seconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func positiveInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// IrisHeaders returns the auth headers Iris expects on HTTP calls and the WS handshake.
func (c *AppConfig) IrisHeaders() map[string]string {
	h := map[string]string{}
	if c.XUserID != "" {
		h["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		h["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		h["X-Session-Id"] = c.XSessionID
	}
	return h
}
