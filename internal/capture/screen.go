package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/vcaesar/screenshot"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

// Screen captures a whole display, or a rectangle of it.
type Screen struct {
	// Display is the zero-based display index.
	Display int

	// Rect limits the capture to part of the display, in display
	// coordinates. The zero value captures the full display.
	Rect image.Rectangle

	// Channels of the returned buffer. Zero means RGB.
	Channels int
}

// Capture grabs the configured display area.
func (s Screen) Capture(ctx context.Context) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Display < 0 {
		return nil, fmt.Errorf("invalid display index %d", s.Display)
	}
	if n := screenshot.NumActiveDisplays(); s.Display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", s.Display, n)
	}

	bounds := screenshot.GetDisplayBounds(s.Display)
	area := bounds
	if !s.Rect.Empty() {
		area = s.Rect.Add(bounds.Min).Intersect(bounds)
		if area.Empty() {
			return nil, fmt.Errorf("capture rect %v lies outside display %d bounds %v", s.Rect, s.Display, bounds)
		}
	}

	img, err := screenshot.CaptureRect(area)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", s.Display, err)
	}
	return imaging.FromImage(img, channelsOrDefault(s.Channels))
}

// Displays returns the bounds of every active display.
func Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	displays := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		displays = append(displays, screenshot.GetDisplayBounds(i))
	}
	return displays
}

func channelsOrDefault(ch int) int {
	if ch == 0 {
		return imaging.RGB
	}
	return ch
}
