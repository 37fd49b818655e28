package bot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/adapter/gamepresenter"
	"github.com/park285/kakao-minigame-bot/internal/config"
	"github.com/park285/kakao-minigame-bot/internal/domain"
	"github.com/park285/kakao-minigame-bot/internal/irisfast"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/obslog"
	"github.com/park285/kakao-minigame-bot/internal/roster"
)

// Engine is the part of *minigame.Engine the handler drives.
type Engine interface {
	Kinds() []string
	Game(kind string) (minigame.Game, bool)
	StartSingle(ctx context.Context, a minigame.ActorAction) (minigame.Session, error)
	ProposeChallenge(ctx context.Context, a minigame.ActorAction) (minigame.Challenge, error)
	AcceptChallenge(ctx context.Context, a minigame.ActorAction) (minigame.Session, error)
	DeclineChallenge(ctx context.Context, a minigame.ActorAction) (minigame.Challenge, error)
	ChooseFirst(ctx context.Context, a minigame.ActorAction) (minigame.Session, error)
	Act(ctx context.Context, a minigame.ActorAction) (minigame.Session, error)
	Status(ctx context.Context, a minigame.ActorAction) (minigame.Session, error)
}

type StatsSource interface {
	Stats(ctx context.Context, realm, player, kind string) (domain.PlayerStats, error)
	Top(ctx context.Context, realm, kind string, limit int) ([]domain.PlayerStats, error)
}

// Replier sends one plain line to a room (*gamepresenter.Presenter satisfies it).
type Replier interface {
	Reply(ctx context.Context, room, text string) error
}

const rankLimit = 10

type Handler struct {
	cfg    *config.AppConfig
	router *Router
	eng    Engine
	f      *gamepresenter.Formatter
	out    Replier
	stats  StatsSource
	roster roster.Roster
	log    *zap.Logger
}

type Option func(*Handler)

func WithStats(s StatsSource) Option { return func(h *Handler) { h.stats = s } }

func WithRoster(r roster.Roster) Option { return func(h *Handler) { h.roster = r } }

func NewHandler(cfg *config.AppConfig, eng Engine, f *gamepresenter.Formatter, out Replier, opts ...Option) *Handler {
	h := &Handler{cfg: cfg, router: NewRouter(), eng: eng, f: f, out: out, log: obslog.Named("bot")}
	for _, o := range opts {
		o(h)
	}
	if h.roster == nil {
		h.roster = roster.NewMemory()
	}
	return h
}

// Handle processes one inbound chat message. Engine rejections are answered in the room;
// nothing is returned to the caller.
func (h *Handler) Handle(ctx context.Context, msg *irisfast.Message) {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("handler_panic", zap.Any("panic", r), zap.String("room", msg.Room))
		}
	}()
	if !h.cfg.RoomAllowed(msg.Room) {
		h.log.Debug("room_not_allowed", zap.String("room", msg.Room))
		return
	}
	userID, name := msg.UserID(), msg.SenderName()
	if name == "" {
		name = userID
	}
	if err := h.roster.Remember(ctx, msg.Room, userID, name); err != nil {
		h.log.Warn("roster_remember_failed", zap.String("room", msg.Room), zap.Error(err))
	}

	a, ok := h.router.Parse(h.cfg.BotPrefix, msg.Room, userID, name, msg.Msg)
	if !ok {
		return
	}
	if a.Actor == "" {
		h.log.Warn("unknown_sender", zap.String("room", msg.Room))
		return
	}
	if a.TargetName != "" {
		if !h.resolveTarget(ctx, msg, &a) {
			h.reply(ctx, a.Realm, h.f.UnknownTarget(a.TargetName))
			return
		}
	}
	h.log.Debug("command",
		zap.String("room", a.Realm), zap.String("actor", a.Actor),
		zap.String("action", string(a.Kind)), zap.String("game", a.Game))

	if err := h.dispatch(ctx, a); err != nil {
		lvl := zap.InfoLevel
		if errors.Is(err, minigame.ErrInternal) {
			lvl = zap.ErrorLevel
		}
		h.log.Log(lvl, "command_rejected",
			zap.String("room", a.Realm), zap.String("actor", a.Actor),
			zap.String("action", string(a.Kind)), zap.Error(err))
		h.reply(ctx, a.Realm, h.f.Rejection(err, a.ActorName))
	}
}

// resolveTarget fills a.Target from the Kakao mention attachment, or from the room roster
// when the message carries no mention metadata.
func (h *Handler) resolveTarget(ctx context.Context, msg *irisfast.Message, a *minigame.ActorAction) bool {
	if ids := msg.MentionIDs(); len(ids) > 0 {
		a.Target = ids[0]
		return true
	}
	m, ok, err := h.roster.Lookup(ctx, a.Realm, a.TargetName)
	if err != nil {
		h.log.Warn("roster_lookup_failed", zap.String("room", a.Realm), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	a.Target, a.TargetName = m.ID, m.Name
	return true
}

func (h *Handler) dispatch(ctx context.Context, a minigame.ActorAction) error {
	var err error
	switch a.Kind {
	case minigame.ActionHelp:
		h.reply(ctx, a.Realm, h.f.Help())
	case minigame.ActionStartSingle:
		_, err = h.eng.StartSingle(ctx, a)
	case minigame.ActionPropose:
		_, err = h.eng.ProposeChallenge(ctx, a)
	case minigame.ActionAccept:
		_, err = h.eng.AcceptChallenge(ctx, a)
	case minigame.ActionDecline:
		_, err = h.eng.DeclineChallenge(ctx, a)
	case minigame.ActionChooseFirst:
		_, err = h.eng.ChooseFirst(ctx, a)
	case minigame.ActionAct:
		_, err = h.eng.Act(ctx, a)
	case minigame.ActionStatus:
		_, err = h.eng.Status(ctx, a)
	case minigame.ActionStats:
		err = h.replyStats(ctx, a)
	default:
		err = minigame.ErrInvalidArgs
	}
	return err
}

func (h *Handler) replyStats(ctx context.Context, a minigame.ActorAction) error {
	if h.stats == nil {
		return minigame.ErrNotFound
	}
	kinds := h.eng.Kinds()
	if a.Game != "" {
		if _, ok := h.eng.Game(a.Game); !ok {
			return minigame.ErrUnknownGame
		}
		kinds = []string{a.Game}
	}
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		st, err := h.stats.Stats(ctx, a.Realm, a.Actor, kind)
		if err != nil {
			return err
		}
		parts = append(parts, h.f.Stats(a.ActorName, kind, st, h.rank(ctx, a.Realm, a.Actor, kind)))
	}
	h.reply(ctx, a.Realm, strings.Join(parts, "\n\n"))
	return nil
}

// rank is the 1-based position in the room leaderboard, 0 when outside it.
func (h *Handler) rank(ctx context.Context, realm, player, kind string) int {
	top, err := h.stats.Top(ctx, realm, kind, rankLimit)
	if err != nil {
		h.log.Warn("stats_top_failed", zap.String("realm", realm), zap.String("kind", kind), zap.Error(err))
		return 0
	}
	for i, st := range top {
		if st.Player == player {
			return i + 1
		}
	}
	return 0
}

func (h *Handler) reply(ctx context.Context, room, text string) {
	if err := h.out.Reply(ctx, room, text); err != nil {
		h.log.Warn("reply_failed", zap.String("room", room), zap.Error(err))
	}
}
