// Package bot turns prefixed chat lines into engine actions and replies.
package bot

import (
	"strings"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/minigame/dice"
	"github.com/park285/kakao-minigame-bot/internal/minigame/wordle"
	"github.com/park285/kakao-minigame-bot/internal/util"
)

// Router parses "<prefix><command> [args]" lines. Game commands double as the start,
// challenge and (for wordle) guess entry points.
type Router struct {
	games map[string]string // 명령어 → game kind
}

func NewRouter() *Router {
	return &Router{games: map[string]string{
		"주사위":    dice.Kind,
		"dice":   dice.Kind,
		"단어":     wordle.Kind,
		"wordle": wordle.Kind,
	}}
}

// GameKind resolves a Korean or English game name; ok is false for unknown names.
func (r *Router) GameKind(name string) (string, bool) {
	k, ok := r.games[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Parse returns false for lines that are not addressed to the bot or name no command.
// The bare prefix is help.
func (r *Router) Parse(prefix, room, userID, userName, text string) (minigame.ActorAction, bool) {
	line := strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(line, prefix) {
		return minigame.ActorAction{}, false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	a := minigame.ActorAction{Realm: strings.TrimSpace(room), Actor: strings.TrimSpace(userID), ActorName: strings.TrimSpace(userName)}
	if raw == "" {
		a.Kind = minigame.ActionHelp
		return a, true
	}
	cmd, rest, _ := strings.Cut(raw, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)

	if kind, ok := r.games[cmd]; ok {
		a.Game = kind
		switch {
		case rest == "":
			a.Kind = minigame.ActionStartSingle
		case strings.HasPrefix(rest, "@"):
			a.Kind = minigame.ActionPropose
			a.TargetName, _ = util.TrimMention(rest)
		case kind == wordle.Kind:
			a.Kind = minigame.ActionAct
			a.Input = firstField(rest)
		default:
			a.Kind = minigame.ActionStartSingle
		}
		return a, true
	}

	switch cmd {
	case "추측", "guess":
		a.Kind = minigame.ActionAct
		a.Game = wordle.Kind
		a.Input = firstField(rest)
	case "굴리기", "roll":
		a.Kind = minigame.ActionAct
		a.Game = dice.Kind
	case "수락", "accept":
		a.Kind = minigame.ActionAccept
		a.TargetName, _ = util.TrimMention(rest)
	case "거절", "decline":
		a.Kind = minigame.ActionDecline
		a.TargetName, _ = util.TrimMention(rest)
	case "선공":
		a.Kind = minigame.ActionChooseFirst
		a.Input = minigame.ChoiceFirst
	case "후공":
		a.Kind = minigame.ActionChooseFirst
		a.Input = minigame.ChoiceSecond
	case "현황", "status":
		a.Kind = minigame.ActionStatus
	case "전적", "stats":
		a.Kind = minigame.ActionStats
		if rest != "" {
			kind, ok := r.GameKind(firstField(rest))
			if !ok {
				// 모르는 게임 이름은 엔진과 같은 거절 문구로 돌려준다
				a.Game = firstField(rest)
				return a, true
			}
			a.Game = kind
		}
	case "도움", "help":
		a.Kind = minigame.ActionHelp
	default:
		return minigame.ActorAction{}, false
	}
	return a, true
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
