package match

import (
	"image"
	"math"
)

// Region is an axis-aligned rectangle in source pixel coordinates.
//
// (X, Y) is the inclusive top-left corner; the region covers Width columns
// and Height rows from there.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Candidate is a matched region and its similarity score.
//
// Score is 1.0 for a pixel-identical match and 0.0 for no correlation.
type Candidate struct {
	Region Region  `json:"region"`
	Score  float64 `json:"score"`
}

// Center returns the exact center of the region.
func (r Region) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// CenterPoint returns the pixel a click aimed at the region should land on.
func (r Region) CenterPoint() image.Point {
	return image.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within reports whether the region has a positive size and lies fully
// inside a width x height image.
func (r Region) Within(width, height int) bool {
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= width && r.Y+r.Height <= height
}

// CenterDistance returns the Euclidean distance between two region centers.
func CenterDistance(a, b Region) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}
