package match

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

// DefaultThreshold is the confidence used when a caller does not choose one.
const DefaultThreshold = 0.99

// Query describes one template search.
type Query struct {
	Template *imaging.PixelBuffer
	Source   *imaging.PixelBuffer

	// Threshold is the minimum accepted score, in (0, 1].
	Threshold float64

	// MaxResults caps the number of candidates. 0 means unbounded.
	MaxResults int

	// MinDistance is the minimum distance in pixels between the centers
	// of two accepted candidates. 0 disables suppression.
	MinDistance float64
}

// Validate checks the query fields that do not depend on image contents.
func (q Query) Validate() error {
	if q.Template == nil || q.Source == nil {
		return invalidQuery("template and source are required")
	}
	if math.IsNaN(q.Threshold) || q.Threshold <= 0 || q.Threshold > 1 {
		return invalidQuery("threshold %v outside (0, 1]", q.Threshold)
	}
	if q.MaxResults < 0 {
		return invalidQuery("max results %d is negative", q.MaxResults)
	}
	if math.IsNaN(q.MinDistance) || q.MinDistance < 0 {
		return invalidQuery("min distance %v is negative", q.MinDistance)
	}
	return nil
}

// Observer receives every completed search. Observers run synchronously
// after the result is final and cannot change it.
type Observer func(q Query, found []Candidate)

// Searcher turns similarity surfaces into ranked, non-overlapping
// candidates. It is safe for concurrent use.
type Searcher struct {
	matcher   *Matcher
	logger    *slog.Logger
	observers []Observer
}

// NewSearcher creates a searcher with its own Matcher.
func NewSearcher(opts ...Option) *Searcher {
	o := applyOptions(opts)
	return &Searcher{
		matcher:   newMatcher(o),
		logger:    o.logger,
		observers: o.observers,
	}
}

// Matcher returns the matcher used for scoring.
func (s *Searcher) Matcher() *Matcher {
	return s.matcher
}

// Search returns candidates scoring at least q.Threshold, best first.
//
// Candidates with equal scores keep raster order (top to bottom, then left
// to right). A candidate is dropped when its center is closer than
// q.MinDistance to an already accepted one. No match is an empty slice and
// a nil error.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := CheckDimensions(q.Template, q.Source); err != nil {
		return nil, err
	}

	start := time.Now()
	surface, err := s.matcher.Surface(ctx, q.Template, q.Source)
	if err != nil {
		return nil, err
	}

	found := selectCandidates(surface, q)
	s.logger.Debug("template search complete",
		"threshold", q.Threshold,
		"max_results", q.MaxResults,
		"min_distance", q.MinDistance,
		"evaluated", surface.Evaluated,
		"found", len(found),
		"elapsed", time.Since(start))

	for _, observe := range s.observers {
		observe(q, found)
	}
	return found, nil
}

// FindBest returns the single best candidate, or nil when nothing reaches
// the threshold.
func (s *Searcher) FindBest(ctx context.Context, tmpl, src *imaging.PixelBuffer, threshold float64) (*Candidate, error) {
	found, err := s.Search(ctx, Query{Template: tmpl, Source: src, Threshold: threshold, MaxResults: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// FindAll returns every non-overlapping candidate reaching the threshold.
func (s *Searcher) FindAll(ctx context.Context, tmpl, src *imaging.PixelBuffer, threshold, minDistance float64) ([]Candidate, error) {
	return s.Search(ctx, Query{Template: tmpl, Source: src, Threshold: threshold, MinDistance: minDistance})
}

func selectCandidates(surface *Surface, q Query) []Candidate {
	tw, th := q.Template.Width(), q.Template.Height()

	var above []Candidate
	for y := 0; y < surface.Height; y++ {
		for x := 0; x < surface.Width; x++ {
			if score := surface.At(x, y); score >= q.Threshold {
				above = append(above, Candidate{
					Region: Region{X: x, Y: y, Width: tw, Height: th},
					Score:  score,
				})
			}
		}
	}
	sort.SliceStable(above, func(i, j int) bool {
		return above[i].Score > above[j].Score
	})

	found := []Candidate{}
	for _, c := range above {
		if q.MaxResults > 0 && len(found) >= q.MaxResults {
			break
		}
		if q.MinDistance > 0 && tooClose(c, found, q.MinDistance) {
			continue
		}
		found = append(found, c)
	}
	return found
}

func tooClose(c Candidate, accepted []Candidate, minDistance float64) bool {
	for _, a := range accepted {
		if CenterDistance(c.Region, a.Region) < minDistance {
			return true
		}
	}
	return false
}
