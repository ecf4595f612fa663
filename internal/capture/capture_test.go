package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/wait"
)

// Both providers plug into the waiter.
var (
	_ wait.CaptureProvider = Screen{}
	_ wait.CaptureProvider = File{}
)

func TestFile_Capture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	writeFrame(t, path, color.NRGBA{10, 20, 30, 255})

	buf, err := File{Path: path}.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if buf.Width() != 8 || buf.Height() != 6 || buf.Channels() != imaging.RGB {
		t.Fatalf("shape: got %dx%dx%d, want 8x6x3", buf.Width(), buf.Height(), buf.Channels())
	}
	if buf.At(0, 0, 2) != 30 {
		t.Errorf("blue sample: got %d, want 30", buf.At(0, 0, 2))
	}

	// A rewritten file is seen on the next capture
	writeFrame(t, path, color.NRGBA{200, 20, 30, 255})
	buf, err = File{Path: path, Channels: imaging.Gray}.Capture(context.Background())
	if err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}
	if buf.Channels() != imaging.Gray {
		t.Errorf("channels: got %d, want 1", buf.Channels())
	}
	if buf.At(0, 0, 0) < 60 {
		t.Errorf("gray sample should reflect the new red frame, got %d", buf.At(0, 0, 0))
	}
}

func TestFile_Errors(t *testing.T) {
	if _, err := (File{Path: filepath.Join(t.TempDir(), "missing.png")}).Capture(context.Background()); err == nil {
		t.Error("missing file should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (File{Path: "unused.png"}).Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScreen_InvalidDisplay(t *testing.T) {
	if _, err := (Screen{Display: -1}).Capture(context.Background()); err == nil {
		t.Error("negative display index should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Screen{}).Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func writeFrame(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	if err := imaging.SavePNG(path, img); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
}
