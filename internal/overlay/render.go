package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/match"
)

// Options control how candidates are drawn.
type Options struct {
	// ShowScores labels each outline with its score.
	ShowScores bool

	// LineWidth is the outline thickness in pixels. Values <= 0 use 2.
	LineWidth int

	// BoxColor is a hex color ("#RRGGBB" or "#RRGGBBAA") for every
	// outline. Empty selects the score palette.
	BoxColor string

	// Threshold anchors the red end of the score palette.
	Threshold float64

	// GridSpacing draws a coordinate grid when positive.
	GridSpacing int
}

// RegionError reports a candidate that cannot be drawn on the source.
type RegionError struct {
	Index  int
	Region match.Region
	Width  int
	Height int
}

func (e *RegionError) Error() string {
	r := e.Region
	return fmt.Sprintf("candidate %d region (%d,%d) %dx%d lies outside %dx%d image",
		e.Index, r.X, r.Y, r.Width, r.Height, e.Width, e.Height)
}

// Render returns a copy of src with every candidate outlined.
//
// The result has the same width and height as src. It has 4 channels when
// src has 4 and 3 channels otherwise: a grayscale source comes back as an
// RGB buffer so the outlines keep their color. All regions are checked
// before anything is drawn.
func Render(src *imaging.PixelBuffer, candidates []match.Candidate, opts Options) (*imaging.PixelBuffer, error) {
	for i, c := range candidates {
		if !c.Region.Within(src.Width(), src.Height()) {
			return nil, &RegionError{Index: i, Region: c.Region, Width: src.Width(), Height: src.Height()}
		}
	}

	var fixedColor *color.NRGBA
	if opts.BoxColor != "" {
		c, err := parseHexColor(opts.BoxColor)
		if err != nil {
			return nil, fmt.Errorf("invalid box color %q: %w", opts.BoxColor, err)
		}
		fixedColor = &c
	}
	lineWidth := opts.LineWidth
	if lineWidth <= 0 {
		lineWidth = 2
	}

	dst := src.Image()
	if opts.GridSpacing > 0 {
		drawGrid(dst, opts.GridSpacing, false, defaultGridColor)
	}

	for _, c := range candidates {
		boxColor := ScoreColor(c.Score, opts.Threshold)
		if fixedColor != nil {
			boxColor = *fixedColor
		}
		drawOutline(dst, c.Region.Rect(), lineWidth, boxColor)
	}
	if opts.ShowScores {
		for _, c := range candidates {
			x, y := c.Region.X, c.Region.Y-labelHeight()-1
			if y < 0 {
				y = c.Region.Y + c.Region.Height + 1
			}
			drawLabel(dst, x+1, y, fmt.Sprintf("%.3f", c.Score), labelText, labelBackground)
		}
	}

	channels := imaging.RGB
	if src.Channels() == imaging.RGBA {
		channels = imaging.RGBA
	}
	return imaging.FromImage(dst, channels)
}

// drawOutline draws a rectangle border of the given width inside r.
func drawOutline(dst *image.NRGBA, r image.Rectangle, width int, c color.NRGBA) {
	if w := min(r.Dx(), r.Dy()); width*2 > w {
		width = (w + 1) / 2
	}
	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+width, r.Min.X+width, r.Max.Y-width),
		image.Rect(r.Max.X-width, r.Min.Y+width, r.Max.X, r.Max.Y-width),
	}
	for _, e := range edges {
		draw.Draw(dst, e, fill, image.Point{}, draw.Over)
	}
}

func labelHeight() int {
	m := labelFace.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}
