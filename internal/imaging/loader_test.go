package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// writeTestPNG writes a solid image into the test's temp dir and returns its path.
func writeTestPNG(t *testing.T, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// bufferCount reports how many converted buffers the cache holds.
func bufferCount(c *ImageCache) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "red.png", 100, 80, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img1.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x80", b.Dx(), b.Dy())
	}

	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.png")
	if err := os.WriteFile(invalid, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/path/to/image.png"},
		{"invalid data", invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewImageCache()
			if _, err := cache.Load(tt.path); err == nil {
				t.Error("Load should fail")
			}
			if _, err := cache.LoadBuffer(tt.path, RGB); err == nil {
				t.Error("LoadBuffer should fail")
			}
			if n := bufferCount(cache); n != 0 {
				t.Errorf("failed loads should not be cached, %d buffers present", n)
			}
		})
	}
}

func TestImageCache_LoadBufferHit(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "red.png", 12, 8, color.RGBA{255, 0, 0, 255})

	buf1, err := cache.LoadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer failed: %v", err)
	}
	if buf1.Width() != 12 || buf1.Height() != 8 || buf1.Channels() != RGB {
		t.Errorf("buffer shape: got %dx%dx%d, want 12x8x3", buf1.Width(), buf1.Height(), buf1.Channels())
	}
	if buf1.At(0, 0, 0) != 255 || buf1.At(0, 0, 1) != 0 {
		t.Errorf("pixel (0,0): got R=%d G=%d, want R=255 G=0", buf1.At(0, 0, 0), buf1.At(0, 0, 1))
	}

	buf2, err := cache.LoadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("second LoadBuffer failed: %v", err)
	}
	if buf1 != buf2 {
		t.Error("second LoadBuffer did not return the cached buffer")
	}
}

func TestImageCache_LoadBufferPerChannels(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "gray.png", 10, 10, color.RGBA{128, 128, 128, 255})

	seen := map[*PixelBuffer]bool{}
	for _, ch := range []int{Gray, RGB, RGBA} {
		buf, err := cache.LoadBuffer(imgPath, ch)
		if err != nil {
			t.Fatalf("LoadBuffer(%d) failed: %v", ch, err)
		}
		if buf.Channels() != ch {
			t.Errorf("LoadBuffer(%d) returned %d channels", ch, buf.Channels())
		}
		seen[buf] = true
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct buffers, want 3", len(seen))
	}
	if n := bufferCount(cache); n != 3 {
		t.Errorf("cache holds %d buffers, want 3", n)
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	kept := writeTestPNG(t, "kept.png", 6, 6, color.RGBA{0, 255, 0, 255})
	evicted := writeTestPNG(t, "evicted.png", 6, 6, color.RGBA{0, 0, 255, 255})

	keptBuf, err := cache.LoadBuffer(kept, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer failed: %v", err)
	}
	old, err := cache.LoadBuffer(evicted, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer failed: %v", err)
	}
	if _, err := cache.LoadBuffer(evicted, Gray); err != nil {
		t.Fatalf("LoadBuffer failed: %v", err)
	}

	cache.Evict(evicted)

	cache.mu.RLock()
	_, imgExists := cache.images[evicted]
	cache.mu.RUnlock()
	if imgExists {
		t.Error("Evict did not remove the decoded image")
	}
	if n := bufferCount(cache); n != 1 {
		t.Errorf("cache holds %d buffers after Evict, want 1", n)
	}

	again, err := cache.LoadBuffer(kept, RGB)
	if err != nil || again != keptBuf {
		t.Errorf("Evict should leave other paths cached: got (%p, %v), want %p", again, err, keptBuf)
	}
	fresh, err := cache.LoadBuffer(evicted, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer after Evict failed: %v", err)
	}
	if fresh == old {
		t.Error("LoadBuffer after Evict returned the evicted buffer")
	}

	// Unknown paths are a no-op
	cache.Evict("/nonexistent/path")
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "clear.png", 6, 6, color.RGBA{10, 20, 30, 255})

	old, err := cache.LoadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer failed: %v", err)
	}

	cache.Clear()

	cache.mu.RLock()
	images := len(cache.images)
	cache.mu.RUnlock()
	if images != 0 || bufferCount(cache) != 0 {
		t.Errorf("Clear left %d images and %d buffers", images, bufferCount(cache))
	}

	fresh, err := cache.LoadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("LoadBuffer after Clear failed: %v", err)
	}
	if fresh == old {
		t.Error("LoadBuffer after Clear returned the cleared buffer")
	}
	if !fresh.Equal(old) {
		t.Error("reloaded buffer should have the same pixels")
	}
}

func TestReadBuffer_BypassesCache(t *testing.T) {
	imgPath := writeTestPNG(t, "frame.png", 4, 4, color.RGBA{255, 0, 0, 255})

	first, err := ReadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}

	// Overwrite the file in place; a second read must see the new pixels.
	replacement := writeTestPNG(t, "blue.png", 4, 4, color.RGBA{0, 0, 255, 255})
	data, err := os.ReadFile(replacement)
	if err != nil {
		t.Fatalf("failed to read replacement: %v", err)
	}
	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		t.Fatalf("failed to overwrite frame: %v", err)
	}

	second, err := ReadBuffer(imgPath, RGB)
	if err != nil {
		t.Fatalf("second ReadBuffer failed: %v", err)
	}
	if first == second {
		t.Fatal("ReadBuffer returned the same buffer twice")
	}
	if first.At(0, 0, 0) != 255 || second.At(0, 0, 2) != 255 || second.At(0, 0, 0) != 0 {
		t.Errorf("ReadBuffer did not see the new contents: first R=%d, second R=%d B=%d",
			first.At(0, 0, 0), second.At(0, 0, 0), second.At(0, 0, 2))
	}

	if _, err := ReadBuffer("/nonexistent/frame.png", RGB); err == nil {
		t.Error("ReadBuffer should fail for a missing file")
	}
}

func TestImageCache_ConcurrentLoadBuffer(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "shared.png", 20, 20, color.RGBA{128, 128, 128, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			if _, err := cache.LoadBuffer(imgPath, ch); err != nil {
				errs <- err
			}
			if ch == Gray {
				cache.Evict(imgPath)
			}
		}([]int{Gray, RGB, RGBA}[i%3])
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent LoadBuffer error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "info.png", 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadImageInfo(cache, imgPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Width != 200 || info.Height != 150 {
		t.Errorf("size: got %dx%d, want 200x150", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}

	if _, err := LoadImageInfo(cache, "/nonexistent/image.png"); err == nil {
		t.Error("LoadImageInfo should fail for non-existent file")
	}
}

func TestLoadImageInfo_FormatDetection(t *testing.T) {
	cache := NewImageCache()

	tests := []struct {
		ext    string
		format string
	}{
		{".png", "png"},
		{".jpg", "jpeg"},
		{".jpeg", "jpeg"},
		{".gif", "gif"},
		{".xyz", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			// The content is always PNG; the format comes from the extension
			path := writeTestPNG(t, "template"+tt.ext, 10, 10, color.Black)

			info, err := LoadImageInfo(cache, path)
			if err != nil {
				t.Fatalf("LoadImageInfo failed: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format for %s: got %s, want %s", tt.ext, info.Format, tt.format)
			}
		})
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestPNG(t, "dims.png", 300, 200, color.RGBA{100, 100, 100, 255})

	dims, err := GetDimensions(cache, imgPath)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}
	if dims.Width != 300 || dims.Height != 200 {
		t.Errorf("size: got %dx%d, want 300x200", dims.Width, dims.Height)
	}

	if _, err := GetDimensions(cache, "/nonexistent/image.png"); err == nil {
		t.Error("GetDimensions should fail for non-existent file")
	}
}
