// Package match locates template images inside larger source images.
//
// # Scoring
//
// A [Matcher] slides the template over every position of the source and
// computes zero-mean normalized cross-correlation for each channel. The
// channel scores are averaged and clamped to [0, 1]: 1.0 is a
// pixel-identical match (up to a uniform brightness or contrast change),
// 0.0 is no correlation or anti-correlation. Window statistics come from
// summed-area tables, and rows of offsets are scored on a bounded pool of
// goroutines.
//
// An optional [Pyramid] scores halved copies of both images first and
// only refines around promising coarse positions. This trades a small
// chance of missing weak matches for a large speedup on big screens.
//
// # Searching
//
// A [Searcher] turns the score surface into [Candidate] values:
//
//	searcher := match.NewSearcher(match.WithWorkers(4))
//	best, err := searcher.FindBest(ctx, tmpl, screen, 0.95)
//	if err != nil {
//	    return err
//	}
//	if best != nil {
//	    x, y := best.Region.CenterPoint().X, best.Region.CenterPoint().Y
//	    ...
//	}
//
// Multi-match searches rank candidates by score and suppress any whose
// center falls within MinDistance of a better one. Ties are resolved in
// raster order, so results are deterministic for identical inputs.
//
// # Errors
//
// A template larger than the source, or with a different channel count,
// fails with *[DimensionError] before any scoring. Malformed queries wrap
// [ErrInvalidQuery]. Finding nothing is not an error.
package match
