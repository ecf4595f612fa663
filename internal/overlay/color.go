package overlay

import (
	"fmt"
	"image/color"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	weakMatch   = colorful.Color{R: 0.9, G: 0.1, B: 0.1}
	strongMatch = colorful.Color{R: 0.1, G: 0.85, B: 0.2}
)

// ScoreColor maps a score to the red-to-green palette. Scores at or below
// threshold are red, 1.0 is green, and values between blend in HCL space.
func ScoreColor(score, threshold float64) color.NRGBA {
	t := 1.0
	if threshold < 1 {
		t = (score - threshold) / (1 - threshold)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	r, g, b := weakMatch.BlendHcl(strongMatch, t).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
