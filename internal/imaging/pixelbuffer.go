package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// Supported channel layouts for a PixelBuffer.
const (
	Gray = 1
	RGB  = 3
	RGBA = 4
)

// ShapeError reports a PixelBuffer whose dimensions, channel count and
// sample length do not agree.
type ShapeError struct {
	Width    int
	Height   int
	Channels int
	Length   int
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid pixel buffer %dx%d with %d channel(s) and %d bytes: %s",
		e.Width, e.Height, e.Channels, e.Length, e.Reason)
}

// PixelBuffer is an immutable rectangular grid of channel-interleaved
// 8-bit samples.
//
// Rows are stored top to bottom, pixels left to right, and each pixel
// holds Channels() consecutive samples (G, RGB or RGBA). A PixelBuffer is
// never modified after construction, so it can be shared between
// goroutines without locking.
type PixelBuffer struct {
	width    int
	height   int
	channels int
	pix      []byte
}

// NewPixelBuffer validates the shape and returns a buffer holding a copy
// of pix.
//
// Returns a *ShapeError when width or height is not positive, when the
// channel count is not 1, 3 or 4, or when len(pix) != width*height*channels.
func NewPixelBuffer(width, height, channels int, pix []byte) (*PixelBuffer, error) {
	if err := checkShape(width, height, channels, len(pix)); err != nil {
		return nil, err
	}
	owned := make([]byte, len(pix))
	copy(owned, pix)
	return &PixelBuffer{width: width, height: height, channels: channels, pix: owned}, nil
}

func checkShape(width, height, channels, length int) error {
	shapeErr := func(reason string) error {
		return &ShapeError{Width: width, Height: height, Channels: channels, Length: length, Reason: reason}
	}
	if width <= 0 || height <= 0 {
		return shapeErr("width and height must be positive")
	}
	switch channels {
	case Gray, RGB, RGBA:
	default:
		return shapeErr("channel count must be 1, 3 or 4")
	}
	if length != width*height*channels {
		return shapeErr(fmt.Sprintf("expected %d bytes", width*height*channels))
	}
	return nil
}

// Width returns the buffer width in pixels.
func (p *PixelBuffer) Width() int { return p.width }

// Height returns the buffer height in pixels.
func (p *PixelBuffer) Height() int { return p.height }

// Channels returns the number of samples per pixel.
func (p *PixelBuffer) Channels() int { return p.channels }

// Pix returns the backing samples. The slice must not be modified.
func (p *PixelBuffer) Pix() []byte { return p.pix }

// Stride returns the number of bytes per row.
func (p *PixelBuffer) Stride() int { return p.width * p.channels }

// At returns the sample of channel c at (x, y).
func (p *PixelBuffer) At(x, y, c int) uint8 {
	return p.pix[(y*p.width+x)*p.channels+c]
}

// Bounds returns the buffer rectangle with its origin at (0, 0).
func (p *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// Clone returns a deep copy of the buffer.
func (p *PixelBuffer) Clone() *PixelBuffer {
	owned := make([]byte, len(p.pix))
	copy(owned, p.pix)
	return &PixelBuffer{width: p.width, height: p.height, channels: p.channels, pix: owned}
}

// Equal reports whether two buffers have the same shape and samples.
func (p *PixelBuffer) Equal(o *PixelBuffer) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.width != o.width || p.height != o.height || p.channels != o.channels {
		return false
	}
	for i := range p.pix {
		if p.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts any image.Image into a PixelBuffer with the requested
// channel count.
//
// Color images are normalized to non-premultiplied RGBA first. A single
// channel buffer holds ITU-R BT.601 luminance. Three channels drop alpha.
func FromImage(img image.Image, channels int) (*PixelBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot convert nil image")
	}
	bounds := img.Bounds()
	if err := checkShape(bounds.Dx(), bounds.Dy(), channels, bounds.Dx()*bounds.Dy()*channels); err != nil {
		return nil, err
	}

	var src *image.NRGBA
	if channels == Gray {
		src = imaging.Grayscale(img)
	} else {
		src = imaging.Clone(img)
	}

	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	pix := make([]byte, width*height*channels)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width*4]
			out := pix[y*width*channels : (y+1)*width*channels]
			for x := 0; x < width; x++ {
				switch channels {
				case Gray:
					out[x] = row[x*4]
				case RGB:
					copy(out[x*3:x*3+3], row[x*4:x*4+3])
				case RGBA:
					copy(out[x*4:x*4+4], row[x*4:x*4+4])
				}
			}
		}
	})

	return &PixelBuffer{width: width, height: height, channels: channels, pix: pix}, nil
}

// Image returns a new *image.NRGBA holding the buffer contents.
//
// Grayscale samples are replicated into R, G and B; buffers without an
// alpha channel become fully opaque.
func (p *PixelBuffer) Image() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	parallel.Line(p.height, func(start, end int) {
		for y := start; y < end; y++ {
			in := p.pix[y*p.Stride() : (y+1)*p.Stride()]
			out := dst.Pix[y*dst.Stride : y*dst.Stride+p.width*4]
			for x := 0; x < p.width; x++ {
				o := out[x*4 : x*4+4]
				switch p.channels {
				case Gray:
					v := in[x]
					o[0], o[1], o[2], o[3] = v, v, v, 255
				case RGB:
					o[0], o[1], o[2], o[3] = in[x*3], in[x*3+1], in[x*3+2], 255
				case RGBA:
					copy(o, in[x*4:x*4+4])
				}
			}
		}
	})
	return dst
}

// Crop returns a new buffer holding the w x h rectangle at (x, y).
func (p *PixelBuffer) Crop(x, y, w, h int) (*PixelBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid crop size %dx%d", w, h)
	}
	if x < 0 || y < 0 || x+w > p.width || y+h > p.height {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside buffer bounds %dx%d",
			x, y, x+w, y+h, p.width, p.height)
	}
	pix := make([]byte, w*h*p.channels)
	rowLen := w * p.channels
	for row := 0; row < h; row++ {
		start := ((y+row)*p.width + x) * p.channels
		copy(pix[row*rowLen:(row+1)*rowLen], p.pix[start:start+rowLen])
	}
	return &PixelBuffer{width: w, height: h, channels: p.channels, pix: pix}, nil
}

// Downsample shrinks the buffer by an integer factor using a box filter.
//
// Trailing rows and columns that do not fill a whole factor x factor block
// are dropped first, so every output pixel averages exactly one block and
// pixel (i, j) of the result always covers source pixels starting at
// (i*factor, j*factor). A factor <= 1 returns the receiver.
func (p *PixelBuffer) Downsample(factor int) (*PixelBuffer, error) {
	if factor <= 1 {
		return p, nil
	}
	w, h := p.width/factor, p.height/factor
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("cannot downsample %dx%d buffer by %d", p.width, p.height, factor)
	}
	src := imaging.Crop(p.Image(), image.Rect(0, 0, w*factor, h*factor))
	return FromImage(imaging.Resize(src, w, h, imaging.Box), p.channels)
}
