package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
)

type TileState int

const (
	TileEmpty TileState = iota
	TileGray
	TileYellow
	TileGreen
)

type Tile struct {
	Letter byte
	State  TileState
}

// WordBoard is the guess grid; rows beyond len(Rows) up to MaxRows are drawn empty.
type WordBoard struct {
	Title   string
	Length  int
	MaxRows int
	Rows    [][]Tile
}

const (
	tileSize = 56
	tileGap  = 6
)

var tileColors = map[TileState]color.Color{
	TileEmpty:  color.NRGBA{R: 58, G: 58, B: 60, A: 255},
	TileGray:   color.NRGBA{R: 120, G: 124, B: 126, A: 255},
	TileYellow: color.NRGBA{R: 201, G: 180, B: 88, A: 255},
	TileGreen:  color.NRGBA{R: 106, G: 170, B: 100, A: 255},
}

// Board draws a WordBoard as PNG.
func Board(ctx context.Context, b WordBoard) ([]byte, error) {
	if b.Length <= 0 {
		return nil, fmt.Errorf("board length must be positive")
	}
	rows := max(b.MaxRows, len(b.Rows), 1)
	gridW := b.Length*tileSize + (b.Length-1)*tileGap
	width := max(gridW+cardMargin*2, 320)
	height := cardMargin*2 + titleH + 16 + rows*tileSize + (rows-1)*tileGap

	img := newCanvas(width, height)
	title := image.Rect(cardMargin, cardMargin, width-cardMargin, cardMargin+titleH)
	drawRoundedPanel(img, title, 10, panelColor)
	drawText(img, title.Inset(10), b.Title, 2, textPrimary, alignCenter)

	left := (width - gridW) / 2
	top := title.Max.Y + 16
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for c := 0; c < b.Length; c++ {
			x := left + c*(tileSize+tileGap)
			y := top + r*(tileSize+tileGap)
			rect := image.Rect(x, y, x+tileSize, y+tileSize)
			t := Tile{}
			if r < len(b.Rows) && c < len(b.Rows[r]) {
				t = b.Rows[r][c]
			}
			drawRoundedPanel(img, rect, 4, tileColors[t.State])
			if t.Letter != 0 {
				drawText(img, rect, strings.ToUpper(string(t.Letter)), 3, textPrimary, alignCenter)
			}
		}
	}
	return encodePNG(ctx, img)
}
