package wait

import (
	"context"
	"fmt"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

// CaptureProvider supplies the current source image.
type CaptureProvider interface {
	Capture(ctx context.Context) (*imaging.PixelBuffer, error)
}

// CaptureFunc adapts a function to CaptureProvider.
type CaptureFunc func(ctx context.Context) (*imaging.PixelBuffer, error)

// Capture calls f(ctx).
func (f CaptureFunc) Capture(ctx context.Context) (*imaging.PixelBuffer, error) {
	return f(ctx)
}

// CaptureError wraps a failure reported by a CaptureProvider.
type CaptureError struct {
	Poll int
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed on poll %d: %v", e.Poll, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
