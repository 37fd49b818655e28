package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// DiceRow is one participant line: every pair rolled so far and the running total.
type DiceRow struct {
	Label     string
	Rolls     [][2]int
	Total     int
	Highlight bool
}

type DiceCard struct {
	Title string
	Rows  []DiceRow
}

const (
	dieSize    = 48
	diePad     = 8
	rollGap    = 20
	diceRowH   = 64
	labelW     = 120
	totalW     = 96
	cardMargin = 24
	titleH     = 44
)

// Dice draws a DiceCard as PNG.
func Dice(ctx context.Context, card DiceCard) ([]byte, error) {
	if len(card.Rows) == 0 {
		return nil, fmt.Errorf("dice card has no rows")
	}
	maxRolls := 1
	for _, r := range card.Rows {
		maxRolls = max(maxRolls, len(r.Rolls))
	}
	rollW := 2*dieSize + diePad
	width := cardMargin*2 + labelW + maxRolls*rollW + (maxRolls-1)*rollGap + rollGap + totalW
	height := cardMargin*2 + titleH + 12 + len(card.Rows)*diceRowH

	img := newCanvas(width, height)
	title := image.Rect(cardMargin, cardMargin, width-cardMargin, cardMargin+titleH)
	drawRoundedPanel(img, title.Add(image.Pt(0, 4)), 10, shadowColor)
	drawRoundedPanel(img, title, 10, panelColor)
	drawText(img, title.Inset(12), card.Title, 2, textPrimary, alignCenter)

	top := title.Max.Y + 12
	for i, row := range card.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := top + i*diceRowH
		line := image.Rect(cardMargin, y, width-cardMargin, y+diceRowH-8)
		if row.Highlight {
			drawRoundedPanel(img, line, 10, highlightColor)
		}
		drawText(img, image.Rect(line.Min.X+10, line.Min.Y, line.Min.X+labelW-8, line.Max.Y), row.Label, 2, textPrimary, alignLeft)

		x := line.Min.X + labelW
		dy := line.Min.Y + (line.Dy()-dieSize)/2
		for _, pair := range row.Rolls {
			for j, face := range pair {
				die, err := dieImage(face, dieSize)
				if err != nil {
					return nil, err
				}
				dx := x + j*(dieSize+diePad)
				draw.Draw(img, image.Rect(dx, dy, dx+dieSize, dy+dieSize), die, image.Point{}, draw.Over)
			}
			x += rollW + rollGap
		}
		drawText(img, image.Rect(line.Max.X-totalW, line.Min.Y, line.Max.X-10, line.Max.Y), strconv.Itoa(row.Total), 3, textPrimary, alignRight)
	}
	return encodePNG(ctx, img)
}

type dieKey struct{ face, size int }

var (
	dieCache   = map[dieKey]image.Image{}
	dieCacheMu sync.RWMutex
)

// dieImage rasterises one die face from its SVG; results are cached per face and size.
func dieImage(face, size int) (image.Image, error) {
	if face < 1 || face > 6 {
		return nil, fmt.Errorf("die face out of range: %d", face)
	}
	key := dieKey{face, size}
	dieCacheMu.RLock()
	if img, ok := dieCache[key]; ok {
		dieCacheMu.RUnlock()
		return img, nil
	}
	dieCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(strings.NewReader(dieSVG(face)))
	if err != nil {
		return nil, fmt.Errorf("parse die svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	dieCacheMu.Lock()
	dieCache[key] = img
	dieCacheMu.Unlock()
	return img, nil
}

// pip centres on a 100x100 face
var pips = map[int][][2]int{
	1: {{50, 50}},
	2: {{27, 27}, {73, 73}},
	3: {{27, 27}, {50, 50}, {73, 73}},
	4: {{27, 27}, {73, 27}, {27, 73}, {73, 73}},
	5: {{27, 27}, {73, 27}, {50, 50}, {27, 73}, {73, 73}},
	6: {{27, 25}, {73, 25}, {27, 50}, {73, 50}, {27, 75}, {73, 75}},
}

func dieSVG(face int) string {
	pip := "#222222"
	if face == 1 {
		pip = "#d62828"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">`)
	b.WriteString(`<rect x="4" y="4" width="92" height="92" rx="16" ry="16" fill="#fbfbf8" stroke="#3a3a3a" stroke-width="4"/>`)
	for _, p := range pips[face] {
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="9" fill="%s"/>`, p[0], p[1], pip)
	}
	b.WriteString(`</svg>`)
	return b.String()
}
