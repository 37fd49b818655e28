package gamepresenter

import (
	"context"
	"fmt"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/minigame/dice"
	"github.com/park285/kakao-minigame-bot/internal/minigame/wordle"
	"github.com/park285/kakao-minigame-bot/internal/render"
)

// sessionImage draws the board of s. Kinds without a board return nil, nil.
func sessionImage(ctx context.Context, s *minigame.Session, rules minigame.Rules) ([]byte, error) {
	switch s.Kind {
	case dice.Kind:
		return render.Dice(ctx, diceCard(s, rules))
	case wordle.Kind:
		return render.Board(ctx, wordBoard(s, rules))
	}
	return nil, nil
}

func slotLabel(s *minigame.Session, slot minigame.Turn) string {
	switch {
	case s.Automated(slot):
		return "BOT"
	case slot == minigame.TurnPrimary:
		return "P1"
	default:
		return "P2"
	}
}

func diceCard(s *minigame.Session, rules minigame.Rules) render.DiceCard {
	round := max(s.Round, 1)
	card := render.DiceCard{Title: fmt.Sprintf("DICE  ROUND %d/%d", round, rules.MaxRounds)}
	var outcome map[minigame.Turn]minigame.Outcome
	if s.Turn == minigame.TurnFinished {
		outcome = minigame.CompareScores(*s)
	}
	for _, slot := range []minigame.Turn{minigame.TurnPrimary, minigame.TurnSecondary} {
		row := render.DiceRow{
			Label:     slotLabel(s, slot),
			Total:     s.Scores[slot],
			Highlight: outcome[slot] == minigame.OutcomeWin,
		}
		for _, m := range s.Moves {
			if r, ok := m.Detail.(dice.Roll); ok && m.Slot == slot {
				row.Rolls = append(row.Rolls, r.Dice)
			}
		}
		card.Rows = append(card.Rows, row)
	}
	return card
}

func wordBoard(s *minigame.Session, rules minigame.Rules) render.WordBoard {
	maxRows := rules.MaxRounds * rules.SlotsPerRound
	guesses := wordle.Guesses(*s)
	b := render.WordBoard{
		Title:   fmt.Sprintf("WORDLE %d/%d", len(guesses), maxRows),
		Length:  wordle.WordLength,
		MaxRows: maxRows,
	}
	for _, g := range guesses {
		row := make([]render.Tile, 0, wordle.WordLength)
		for i := 0; i < wordle.WordLength && i < len(g.Word); i++ {
			row = append(row, render.Tile{Letter: g.Word[i], State: tileState(g.Marks[i])})
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

func tileState(m wordle.Mark) render.TileState {
	switch m {
	case wordle.Green:
		return render.TileGreen
	case wordle.Yellow:
		return render.TileYellow
	default:
		return render.TileGray
	}
}
