// Package render draws the result images attached to game messages: dice rows and the
// word guess board. Only ASCII text is drawn (basicfont); names stay in the chat text.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	backgroundColor = color.RGBA{R: 24, G: 26, B: 38, A: 255}
	panelColor      = color.NRGBA{R: 36, G: 39, B: 58, A: 250}
	highlightColor  = color.NRGBA{R: 255, G: 214, B: 102, A: 90}
	shadowColor     = color.NRGBA{A: 50}
	textPrimary     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

type align int

const (
	alignCenter align = iota
	alignLeft
	alignRight
)

func newCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)
	return img
}

func encodePNG(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// asciiOnly drops everything basicfont cannot draw.
func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// drawText renders text with the 7x13 bitmap face scaled by an integer factor, placed
// inside rect. Text wider than rect is cut with "..".
func drawText(dst draw.Image, rect image.Rectangle, text string, scale int, clr color.Color, a align) {
	text = asciiOnly(text)
	if text == "" || rect.Empty() {
		return
	}
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	text = fitWidth(face, text, rect.Dx()/scale)
	if text == "" {
		return
	}
	d := font.Drawer{Face: face}
	w := d.MeasureString(text).Ceil()
	h := face.Metrics().Height.Ceil()

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	d.Dst = small
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(0, face.Metrics().Ascent.Ceil())
	d.DrawString(text)

	sw, sh := w*scale, h*scale
	x := rect.Min.X + (rect.Dx()-sw)/2
	switch a {
	case alignLeft:
		x = rect.Min.X
	case alignRight:
		x = rect.Max.X - sw
	}
	y := rect.Min.Y + (rect.Dy()-sh)/2
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+sw, y+sh), small, small.Bounds(), xdraw.Over, nil)
}

func fitWidth(face font.Face, text string, maxWidth int) string {
	d := font.Drawer{Face: face}
	if d.MeasureString(text).Ceil() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + ".."; d.MeasureString(c).Ceil() <= maxWidth {
			return c
		}
	}
	return ""
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	if m := min(rect.Dx(), rect.Dy()) / 2; radius > m {
		radius = m
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		draw.Draw(img, rect, fill, image.Point{}, draw.Over)
		return
	}
	// 가운데 세로 띠 + 좌우 띠, 모서리는 원
	draw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, draw.Over)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, draw.Over)
	draw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, draw.Over)
	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, clr, rect)
	}
}

// drawQuarterDisc fills the disc around center but only the part outside the already
// painted bands, so translucent colours are not blended twice.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, clr color.Color, rect image.Rectangle) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > r2 {
				continue
			}
			px, py := center.X+x, center.Y+y
			inCore := px >= rect.Min.X+radius && px < rect.Max.X-radius
			inSide := py >= rect.Min.Y+radius && py < rect.Max.Y-radius
			if inCore || inSide || !(image.Point{X: px, Y: py}).In(rect) {
				continue
			}
			blendPixel(img, px, py, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	a := float64(sa) / 65535.0
	dst := img.RGBAAt(x, y)
	mix := func(s uint32, d uint8) uint8 {
		return floatToUint8(float64(s)/257.0 + float64(d)*(1-a))
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: floatToUint8(a*255.0 + float64(dst.A)*(1-a)),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
