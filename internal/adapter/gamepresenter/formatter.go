package gamepresenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/kakao-minigame-bot/internal/domain"
	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/minigame/dice"
	"github.com/park285/kakao-minigame-bot/internal/minigame/wordle"
	"github.com/park285/kakao-minigame-bot/internal/msgcat"
	"github.com/park285/kakao-minigame-bot/internal/util"
)

// Formatter turns engine events and rejections into Kakao text using the message catalog.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
	ttl    time.Duration
	games  map[string]minigame.Game
}

func NewFormatter(cat *msgcat.Catalog, prefix string, challengeTTL time.Duration, games ...minigame.Game) *Formatter {
	if cat == nil {
		cat = msgcat.Default()
	}
	if challengeTTL <= 0 {
		challengeTTL = minigame.DefaultChallengeTTL
	}
	f := &Formatter{cat: cat, prefix: strings.TrimSpace(prefix), ttl: challengeTTL, games: map[string]minigame.Game{}}
	for _, g := range games {
		f.games[g.Kind()] = g
	}
	return f
}

func (f *Formatter) Prefix() string { return f.prefix }

func (f *Formatter) line(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.prefix
	}
	return f.cat.MustRender(key, data, "")
}

// GameName is the Korean display name of a game kind.
func (f *Formatter) GameName(kind string) string {
	return f.cat.MustRender("game."+kind, nil, kind)
}

func (f *Formatter) Help() string {
	return util.FoldAfterFirstLine(f.line("help", nil))
}

type rejection struct {
	err error
	key string
}

// 순서 중요: 구체적인 것부터
var rejections = []rejection{
	{minigame.ErrOnCooldown, "on_cooldown"},
	{minigame.ErrInvalidInput, "invalid_input"},
	{minigame.ErrAlreadyActive, "already_active"},
	{minigame.ErrAlreadyPending, "already_pending"},
	{minigame.ErrSelfChallenge, "self_challenge"},
	{minigame.ErrParticipantBusy, "participant_busy"},
	{minigame.ErrNotYourChallenge, "not_your_challenge"},
	{minigame.ErrNotYourTurn, "not_your_turn"},
	{minigame.ErrInvalidState, "invalid_state"},
	{minigame.ErrGameFinished, "game_finished"},
	{minigame.ErrNotFound, "not_found"},
	{minigame.ErrExpired, "expired"},
	{minigame.ErrUnknownGame, "unknown_game"},
	{minigame.ErrInvalidArgs, "invalid_args"},
}

// Rejection maps an engine error to the line shown to the actor.
func (f *Formatter) Rejection(err error, name string) string {
	if err == nil {
		return ""
	}
	data := map[string]any{"Name": name, "Remaining": "", "Reason": ""}
	var cd *minigame.CooldownError
	if errors.As(err, &cd) {
		data["Remaining"] = humanDuration(cd.Remaining)
	}
	var in *minigame.InputError
	if errors.As(err, &in) {
		data["Reason"] = in.Reason
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return f.line("rejection."+r.key, data)
		}
	}
	return f.line("rejection.unknown", data)
}

// UnknownTarget is the reply when a mention cannot be resolved to a player.
func (f *Formatter) UnknownTarget(name string) string {
	return f.line("rejection.unknown_target", map[string]any{"Name": name})
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		d = time.Second
	}
	m, s := int(d/time.Minute), int((d%time.Minute)/time.Second)
	switch {
	case m == 0:
		return fmt.Sprintf("%d초", s)
	case s == 0:
		return fmt.Sprintf("%d분", m)
	default:
		return fmt.Sprintf("%d분 %d초", m, s)
	}
}

func (f *Formatter) nameIn(s *minigame.Session, slot minigame.Turn) string {
	if s.Automated(slot) {
		return f.line("session.bot", nil)
	}
	return s.NameOf(s.PlayerAt(slot))
}

func challengeName(c *minigame.Challenge, player string) string {
	if n := strings.TrimSpace(c.Names[player]); n != "" {
		return n
	}
	return player
}

// Event renders the text part of an engine event.
func (f *Formatter) Event(ev minigame.Event) string {
	switch ev.Kind {
	case minigame.EventChallengeProposed, minigame.EventChallengeDeclined, minigame.EventChallengeExpired:
		if ev.Challenge == nil {
			return ""
		}
		c := ev.Challenge
		key := map[minigame.EventKind]string{
			minigame.EventChallengeProposed: "challenge.proposed",
			minigame.EventChallengeDeclined: "challenge.declined",
			minigame.EventChallengeExpired:  "challenge.expired",
		}[ev.Kind]
		return f.line(key, map[string]any{
			"Challenger": challengeName(c, c.Challenger),
			"Challenged": challengeName(c, c.Challenged),
			"Game":       f.GameName(c.Kind),
			"TTL":        int(f.ttl / time.Second),
		})
	}
	if ev.Session == nil {
		return ""
	}
	s := ev.Session
	switch ev.Kind {
	case minigame.EventSessionStarted:
		return f.started(s)
	case minigame.EventFirstChosen:
		return joinLines(
			f.line("session.first_chosen", map[string]any{"Starter": f.nameIn(s, s.Starter)}),
			f.turnLine(s),
		)
	case minigame.EventMoves:
		return f.moves(s, ev.Moves)
	case minigame.EventStatus:
		return f.status(s)
	case minigame.EventSessionFinished:
		return f.finished(s, ev.Outcomes)
	}
	return ""
}

func (f *Formatter) started(s *minigame.Session) string {
	head := f.line("session.started_single", map[string]any{"Player": s.NameOf(s.Primary), "Game": f.GameName(s.Kind)})
	if s.Mode == minigame.ModePvP {
		head = f.line("session.started_pvp", map[string]any{
			"Primary": s.NameOf(s.Primary), "Secondary": s.NameOf(s.Secondary), "Game": f.GameName(s.Kind),
		})
	}
	if s.Turn == minigame.TurnChoosing {
		return joinLines(head, f.line("session.choose", nil))
	}
	return joinLines(head, f.turnLine(s))
}

// turnLine names whose turn it is and how to play; empty once the game is over.
func (f *Formatter) turnLine(s *minigame.Session) string {
	if s.Turn != minigame.TurnPrimary && s.Turn != minigame.TurnSecondary {
		return ""
	}
	return joinLines(f.line("session.turn", map[string]any{"Name": f.nameIn(s, s.Turn)}), f.hint(s))
}

func (f *Formatter) hint(s *minigame.Session) string {
	switch s.Kind {
	case dice.Kind:
		return f.line("dice.hint", nil)
	case wordle.Kind:
		return f.line("wordle.hint", map[string]any{"Max": f.rules(s).MaxRounds})
	}
	return ""
}

func (f *Formatter) rules(s *minigame.Session) minigame.Rules {
	if g, ok := f.games[s.Kind]; ok {
		return g.Rules(s.Mode)
	}
	return minigame.Rules{MaxRounds: 1}
}

func (f *Formatter) scoreLine(s *minigame.Session) string {
	return f.line("session.scoreline", map[string]any{
		"Primary":        f.nameIn(s, minigame.TurnPrimary),
		"PrimaryScore":   s.Scores[minigame.TurnPrimary],
		"SecondaryScore": s.Scores[minigame.TurnSecondary],
		"Secondary":      f.nameIn(s, minigame.TurnSecondary),
	})
}

func (f *Formatter) moves(s *minigame.Session, moves []minigame.Move) string {
	lines := make([]string, 0, len(moves)+3)
	for _, m := range moves {
		lines = append(lines, f.moveLine(s, m))
	}
	if s.Kind == dice.Kind {
		lines = append(lines, f.scoreLine(s))
	}
	lines = append(lines, f.turnLine(s))
	return joinLines(lines...)
}

func (f *Formatter) moveLine(s *minigame.Session, m minigame.Move) string {
	name := f.nameIn(s, m.Slot)
	switch d := m.Detail.(type) {
	case dice.Roll:
		return f.line("dice.roll", map[string]any{"Name": name, "A": d.Dice[0], "B": d.Dice[1], "Sum": d.Sum})
	case wordle.Guess:
		return f.line("wordle.guess", map[string]any{"Name": name, "Word": strings.ToUpper(d.Word), "Marks": markEmoji(d.Marks)})
	}
	return fmt.Sprintf("%s: +%d", name, m.Points)
}

func markEmoji(marks [wordle.WordLength]wordle.Mark) string {
	var b strings.Builder
	for _, m := range marks {
		switch m {
		case wordle.Green:
			b.WriteString("🟩")
		case wordle.Yellow:
			b.WriteString("🟨")
		default:
			b.WriteString("⬜")
		}
	}
	return b.String()
}

func (f *Formatter) status(s *minigame.Session) string {
	head := "[" + f.GameName(s.Kind) + "]"
	if s.Kind != wordle.Kind {
		head += " " + f.scoreLine(s)
	}
	if s.Turn == minigame.TurnChoosing {
		return joinLines(head, f.line("session.choose", nil))
	}
	round := f.line("session.round", map[string]any{"Round": s.Round, "MaxRounds": f.rules(s).MaxRounds})
	return joinLines(head, round, f.turnLine(s))
}

func (f *Formatter) finished(s *minigame.Session, outcomes map[minigame.Turn]minigame.Outcome) string {
	result := f.line("session.tie", nil)
	for _, slot := range []minigame.Turn{minigame.TurnPrimary, minigame.TurnSecondary} {
		if outcomes[slot] == minigame.OutcomeWin {
			result = f.line("session.winner", map[string]any{"Winner": f.nameIn(s, slot)})
		}
	}
	lines := []string{result}
	switch s.Kind {
	case dice.Kind:
		lines = append(lines, f.scoreLine(s))
	case wordle.Kind:
		secret := strings.ToUpper(wordle.Secret(*s))
		if solver, solved := wordle.Solver(*s); solved {
			n := 0
			for _, m := range s.Moves {
				if m.Slot == solver {
					n++
				}
			}
			lines = append(lines, f.line("wordle.solved", map[string]any{"Secret": secret, "Count": n}))
		} else if secret != "" {
			lines = append(lines, f.line("wordle.reveal", map[string]any{"Secret": secret}))
		}
	}
	return joinLines(lines...)
}

// Stats renders a player's aggregate; rank is 0 when the player is outside the top list.
func (f *Formatter) Stats(name, kind string, st domain.PlayerStats, rank int) string {
	data := map[string]any{"Name": name, "Game": f.GameName(kind)}
	if st.Played() == 0 {
		return f.line("stats.empty", data)
	}
	data["Wins"], data["Losses"], data["Ties"] = st.Wins, st.Losses, st.Ties
	data["Rate"], data["Streak"], data["Best"] = st.WinRate(), st.Streak, st.BestStreak
	out := f.line("stats.line", data)
	if rank > 0 {
		out = joinLines(out, f.line("stats.rank", map[string]any{"Rank": rank}))
	}
	return out
}

func joinLines(lines ...string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
