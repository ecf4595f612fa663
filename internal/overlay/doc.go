// Package overlay renders diagnostic images for template matches.
//
// [Render] draws an outline around every candidate region of a source
// buffer, optionally labelled with its score and laid over a coordinate
// grid. The source is never modified; the result is a new buffer of the
// same size.
//
// Outline colors come from a red-to-green palette keyed on score, so a
// weak match near the threshold shows red and a perfect one green. A fixed
// hex color can be used instead.
//
// [DebugSink] plugs into a match.Searcher as an observer and writes one
// annotated PNG per search, which is the quickest way to see why a
// threshold is too strict or too loose.
package overlay
