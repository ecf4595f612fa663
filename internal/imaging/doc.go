// Package imaging provides image loading, pixel buffers and PNG output for
// the MCP server.
//
// Images are decoded with the standard image codecs and converted into
// PixelBuffer values: immutable, row-major, 8-bit samples with 1 (gray),
// 3 (RGB) or 4 (RGBA) interleaved channels. The matcher works only on
// PixelBuffers. Converting back with PixelBuffer.Image yields an
// *image.NRGBA for drawing and encoding.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. A PixelBuffer is never
// modified after construction, so it can be shared freely between
// goroutines.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Sample slices that do not match width*height*channels (*ShapeError)
//   - Coordinates outside image bounds
//   - Invalid region specifications (x1 >= x2 or y1 >= y2)
//   - File I/O errors during image loading
//   - Encoding errors during image output
//
// # Performance Considerations
//
// For repeated operations on the same image, use ImageCache to avoid redundant
// disk reads. Buffers are cached per channel layout next to the decoded
// image. Use Evict() after rewriting a file, or Clear() to release memory.
package imaging
