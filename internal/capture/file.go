package capture

import (
	"context"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

// File reads Path on every capture. It bypasses any image cache so that a
// file rewritten by another process is picked up on the next poll.
type File struct {
	Path     string
	Channels int
}

// Capture decodes the file into a new buffer.
func (f File) Capture(ctx context.Context) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return imaging.ReadBuffer(f.Path, channelsOrDefault(f.Channels))
}
