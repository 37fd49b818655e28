// Package gamepresenter delivers engine events to a chat room as text plus a board image.
package gamepresenter

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/obslog"
)

// Sender is the outbound side (irisfast.Egress satisfies it).
type Sender interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

type Presenter struct {
	out    Sender
	f      *Formatter
	images bool
	log    *zap.Logger
}

var _ minigame.Presenter = (*Presenter)(nil)

type Option func(*Presenter)

// WithoutImages sends text only.
func WithoutImages() Option { return func(p *Presenter) { p.images = false } }

func NewPresenter(out Sender, f *Formatter, opts ...Option) *Presenter {
	p := &Presenter{out: out, f: f, images: true, log: obslog.Named("presenter")}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Presenter) Formatter() *Formatter { return p.f }

func realmOf(ev minigame.Event) string {
	if ev.Session != nil {
		return ev.Session.Realm
	}
	if ev.Challenge != nil {
		return ev.Challenge.Realm
	}
	return ""
}

// Render implements minigame.Presenter. The text goes first; the image is attached for move
// and status events.
func (p *Presenter) Render(ctx context.Context, ev minigame.Event) error {
	if p == nil || p.out == nil {
		return nil
	}
	room := realmOf(ev)
	if room == "" {
		return errors.New("event without realm")
	}
	if text := p.f.Event(ev); strings.TrimSpace(text) != "" {
		if err := p.out.SendText(ctx, room, text); err != nil {
			return err
		}
	}
	if !p.images || ev.Session == nil {
		return nil
	}
	if ev.Kind != minigame.EventMoves && ev.Kind != minigame.EventStatus {
		return nil
	}
	img, err := sessionImage(ctx, ev.Session, p.f.rules(ev.Session))
	if err != nil {
		// 이미지 실패는 텍스트만 보낸 것으로 둔다
		p.log.Warn("render_image_failed", zap.String("session_id", ev.Session.ID), zap.Error(err))
		return nil
	}
	if len(img) == 0 {
		return nil
	}
	return p.out.SendImage(ctx, room, base64.StdEncoding.EncodeToString(img))
}

// Reply sends a plain line to a room (rejections, help, stats).
func (p *Presenter) Reply(ctx context.Context, room, text string) error {
	if p == nil || p.out == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return p.out.SendText(ctx, room, text)
}
