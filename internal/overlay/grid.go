package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

var defaultGridColor = color.NRGBA{255, 0, 0, 128}

// GridOverlayResult contains the image with grid overlay
type GridOverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	GridSpacing int    `json:"grid_spacing"`
}

// GridOverlay adds a coordinate grid overlay to an image.
//
// An unparsable color falls back to semi-transparent red. Labels mark
// every grid intersection with its pixel coordinates, which makes it easy
// to pick crop rectangles for new templates.
func GridOverlay(img image.Image, gridSpacing int, showCoordinates bool, gridColorHex string) (*GridOverlayResult, error) {
	if gridSpacing <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", gridSpacing)
	}
	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = defaultGridColor
	}

	bounds := img.Bounds()
	result := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)
	drawGrid(result, gridSpacing, showCoordinates, gridColor)

	encoded, err := imaging.EncodePNGBase64(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &GridOverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		GridSpacing: gridSpacing,
	}, nil
}

// drawGrid draws grid lines every spacing pixels, skipping the image edges.
func drawGrid(dst *image.NRGBA, spacing int, showCoordinates bool, c color.NRGBA) {
	bounds := dst.Bounds()
	line := image.NewUniform(c)

	for x := spacing; x < bounds.Dx(); x += spacing {
		draw.Draw(dst, image.Rect(x, 0, x+1, bounds.Dy()), line, image.Point{}, draw.Over)
	}
	for y := spacing; y < bounds.Dy(); y += spacing {
		draw.Draw(dst, image.Rect(0, y, bounds.Dx(), y+1), line, image.Point{}, draw.Over)
	}

	if !showCoordinates {
		return
	}
	for y := spacing; y < bounds.Dy(); y += spacing {
		for x := spacing; x < bounds.Dx(); x += spacing {
			drawLabel(dst, x+2, y+2, fmt.Sprintf("%d,%d", x, y), labelText, labelBackground)
		}
	}
}
