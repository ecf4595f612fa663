package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	labelText       = color.NRGBA{255, 255, 255, 255}
	labelBackground = color.NRGBA{0, 0, 0, 180}
)

var labelFace = basicfont.Face7x13

// drawLabel draws text with its top-left corner at (x, y) on a filled
// background box. Parts outside dst are clipped.
func drawLabel(dst draw.Image, x, y int, text string, fg, bg color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: labelFace,
	}
	metrics := labelFace.Metrics()
	width := d.MeasureString(text).Ceil()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	box := image.Rect(x-1, y-1, x+width+1, y+height)
	draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + metrics.Ascent}
	d.DrawString(text)
}
