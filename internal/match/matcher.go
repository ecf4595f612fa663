package match

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/anthonynsimon/bild/parallel"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
)

// flatVariance is the largest sum of squared deviations treated as a flat
// (constant) patch. Integer samples that are not all equal have a sum of at
// least (n-1)/n >= 0.5, so this only absorbs floating-point noise.
const flatVariance = 0.25

// Pyramid configures coarse-to-fine scoring.
//
// With Levels > 0 both images are halved Levels times; the coarsest level
// is scored at every offset and each finer level only at offsets whose
// coarse score reached PruneThreshold. Every halving of the source is done
// at all four 2x2 phases, so matches at odd positions survive pruning. Levels are reduced automatically so
// the coarsest template keeps at least MinTemplateSize pixels on its
// shorter side.
type Pyramid struct {
	Levels          int     `yaml:"levels" json:"levels"`
	PruneThreshold  float64 `yaml:"prune_threshold" json:"prune_threshold"`
	MinTemplateSize int     `yaml:"min_template_size" json:"min_template_size"`
}

// Surface is a dense grid of similarity scores, one per top-left offset.
//
// Width is w_s-w_t+1 and Height is h_s-h_t+1. Offsets skipped by pyramid
// pruning hold 0.
type Surface struct {
	Width     int
	Height    int
	Scores    []float64
	Evaluated int
}

// At returns the score for the template placed with its top-left at (x, y).
func (s *Surface) At(x, y int) float64 {
	return s.Scores[y*s.Width+x]
}

// Max returns the highest-scoring offset. Ties go to the first offset in
// raster order.
func (s *Surface) Max() (x, y int, score float64) {
	best := -1
	for i, v := range s.Scores {
		if best < 0 || v > s.Scores[best] {
			best = i
		}
	}
	return best % s.Width, best / s.Width, s.Scores[best]
}

// Matcher computes normalized cross-correlation surfaces.
//
// A Matcher holds only configuration and is safe for concurrent use.
type Matcher struct {
	workers int
	pyramid Pyramid
	logger  *slog.Logger
}

// NewMatcher creates a matcher. Without options it scores every offset
// densely on GOMAXPROCS workers.
func NewMatcher(opts ...Option) *Matcher {
	o := applyOptions(opts)
	return newMatcher(o)
}

func newMatcher(o *options) *Matcher {
	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Matcher{workers: workers, pyramid: o.pyramid, logger: o.logger}
}

// CheckDimensions returns a *DimensionError unless tmpl fits inside src
// and both have the same channel count.
func CheckDimensions(tmpl, src *imaging.PixelBuffer) error {
	if tmpl.Width() > src.Width() || tmpl.Height() > src.Height() || tmpl.Channels() != src.Channels() {
		return &DimensionError{
			TemplateWidth:    tmpl.Width(),
			TemplateHeight:   tmpl.Height(),
			TemplateChannels: tmpl.Channels(),
			SourceWidth:      src.Width(),
			SourceHeight:     src.Height(),
			SourceChannels:   src.Channels(),
		}
	}
	return nil
}

// Surface scores tmpl against every valid offset of src.
//
// Each channel contributes its zero-mean normalized cross-correlation;
// the channel average is clamped to [0, 1], so anti-correlated regions
// score 0. Scores are unchanged by adding a constant to, or scaling, every
// sample of either image. A channel that is constant in both the template
// and the window scores 1; constant in only one of them scores 0.
func (m *Matcher) Surface(ctx context.Context, tmpl, src *imaging.PixelBuffer) (*Surface, error) {
	if err := CheckDimensions(tmpl, src); err != nil {
		return nil, err
	}

	start := time.Now()
	levels := m.levelsFor(tmpl)
	if levels == 0 {
		surface, err := m.score(ctx, tmpl, src, nil)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("scored surface",
			"template", sizeOf(tmpl), "source", sizeOf(src),
			"offsets", len(surface.Scores), "evaluated", surface.Evaluated,
			"elapsed", time.Since(start))
		return surface, nil
	}

	tmpls := []*imaging.PixelBuffer{tmpl}
	for l := 1; l <= levels; l++ {
		t, err := tmpls[l-1].Downsample(2)
		if err != nil {
			return nil, err
		}
		tmpls = append(tmpls, t)
	}

	mask, coarseEvaluated, err := m.candidates(ctx, tmpls, src)
	if err != nil {
		return nil, err
	}
	surface, err := m.score(ctx, tmpl, src, mask)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("scored surface",
		"template", sizeOf(tmpl), "source", sizeOf(src), "levels", levels,
		"offsets", len(surface.Scores), "evaluated", surface.Evaluated,
		"coarse_evaluated", coarseEvaluated, "elapsed", time.Since(start))
	return surface, nil
}

// candidates returns the offsets of src worth scoring with tmpls[0], or
// nil when tmpls has no coarser level. It also reports how many coarse
// offsets were scored to decide.
//
// The next level is built once for each of the four 2x2 phases of src, so
// fine offset (2cx+px, 2cy+py) lines up block for block with coarse offset
// (cx, cy) of phase (px, py). An exact match therefore keeps its coarse
// score of 1 whatever the parity of its position.
func (m *Matcher) candidates(ctx context.Context, tmpls []*imaging.PixelBuffer, src *imaging.PixelBuffer) ([]bool, int, error) {
	if len(tmpls) < 2 {
		return nil, 0, nil
	}
	tmpl, coarseTmpl := tmpls[0], tmpls[1]
	fineW := src.Width() - tmpl.Width() + 1
	fineH := src.Height() - tmpl.Height() + 1

	mask := make([]bool, fineW*fineH)
	evaluated := 0
	for py := 0; py < 2 && py < fineH; py++ {
		for px := 0; px < 2 && px < fineW; px++ {
			phase, err := src.Crop(px, py, src.Width()-px, src.Height()-py)
			if err != nil {
				return nil, 0, err
			}
			coarse, err := phase.Downsample(2)
			if err != nil {
				return nil, 0, err
			}
			sub, n, err := m.candidates(ctx, tmpls[1:], coarse)
			if err != nil {
				return nil, 0, err
			}
			surface, err := m.score(ctx, coarseTmpl, coarse, sub)
			if err != nil {
				return nil, 0, err
			}
			evaluated += n + surface.Evaluated
			markPhase(mask, surface, m.pyramid.PruneThreshold, px, py, fineW, fineH)
		}
	}
	return mask, evaluated, nil
}

// levelsFor caps the configured pyramid depth so the coarsest template
// side stays at or above MinTemplateSize.
func (m *Matcher) levelsFor(tmpl *imaging.PixelBuffer) int {
	minSide := tmpl.Width()
	if tmpl.Height() < minSide {
		minSide = tmpl.Height()
	}
	minSize := m.pyramid.MinTemplateSize
	if minSize < 1 {
		minSize = 1
	}
	levels := 0
	for levels < m.pyramid.Levels && minSide>>(levels+1) >= minSize {
		levels++
	}
	return levels
}

// markPhase sets the fine offsets whose phase (px, py) coarse score
// reached threshold. Coarse offset c maps to fine offset 2c+p.
func markPhase(mask []bool, coarse *Surface, threshold float64, px, py, fineW, fineH int) {
	for cy := 0; cy < coarse.Height; cy++ {
		fy := 2*cy + py
		if fy >= fineH {
			break
		}
		for cx := 0; cx < coarse.Width; cx++ {
			fx := 2*cx + px
			if fx >= fineW {
				break
			}
			if coarse.At(cx, cy) >= threshold {
				mask[fy*fineW+fx] = true
			}
		}
	}
}

// templateStats holds the zero-mean template planes for one level.
type templateStats struct {
	zero     [][]float64 // per channel, mean-subtracted samples
	variance []float64   // per channel, sum of squared deviations
}

func newTemplateStats(tmpl *imaging.PixelBuffer) templateStats {
	ch := tmpl.Channels()
	n := tmpl.Width() * tmpl.Height()
	pix := tmpl.Pix()

	stats := templateStats{zero: make([][]float64, ch), variance: make([]float64, ch)}
	for c := 0; c < ch; c++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += float64(pix[i*ch+c])
		}
		mean := sum / float64(n)
		plane := make([]float64, n)
		var variance float64
		for i := 0; i < n; i++ {
			d := float64(pix[i*ch+c]) - mean
			plane[i] = d
			variance += d * d
		}
		stats.zero[c] = plane
		stats.variance[c] = variance
	}
	return stats
}

// integral is a summed-area table of one channel and of its squares.
// Entry (x, y) covers the samples above and to the left of (x, y), so the
// table is (w+1) x (h+1).
type integral struct {
	stride int
	sum    []int64
	sq     []int64
}

func newIntegrals(src *imaging.PixelBuffer) []integral {
	w, h, ch := src.Width(), src.Height(), src.Channels()
	pix := src.Pix()
	stride := w + 1

	tables := make([]integral, ch)
	for c := 0; c < ch; c++ {
		t := integral{stride: stride, sum: make([]int64, stride*(h+1)), sq: make([]int64, stride*(h+1))}

		// Row prefix sums are independent per row.
		parallel.Line(h, func(start, end int) {
			for y := start; y < end; y++ {
				var rs, rq int64
				base := (y + 1) * stride
				for x := 0; x < w; x++ {
					v := int64(pix[(y*w+x)*ch+c])
					rs += v
					rq += v * v
					t.sum[base+x+1] = rs
					t.sq[base+x+1] = rq
				}
			}
		})
		// Column accumulation is independent per column.
		parallel.Line(stride, func(start, end int) {
			for y := 1; y <= h; y++ {
				row, prev := y*stride, (y-1)*stride
				for x := start; x < end; x++ {
					t.sum[row+x] += t.sum[prev+x]
					t.sq[row+x] += t.sq[prev+x]
				}
			}
		})
		tables[c] = t
	}
	return tables
}

func (t *integral) window(x, y, w, h int) (sum, sq int64) {
	a := y*t.stride + x
	b := a + w
	c := (y+h)*t.stride + x
	d := c + w
	return t.sum[d] - t.sum[b] - t.sum[c] + t.sum[a], t.sq[d] - t.sq[b] - t.sq[c] + t.sq[a]
}

// score computes one level. A nil mask scores every offset; otherwise only
// offsets whose mask entry is set are evaluated and the rest stay 0.
//
// Rows of offsets are split into bands and scored on a bounded pool of
// goroutines. Workers share the buffers read-only and write disjoint
// surface cells, so the result does not depend on scheduling.
func (m *Matcher) score(ctx context.Context, tmpl, src *imaging.PixelBuffer, mask []bool) (*Surface, error) {
	tw, th := tmpl.Width(), tmpl.Height()
	surface := &Surface{
		Width:  src.Width() - tw + 1,
		Height: src.Height() - th + 1,
	}
	surface.Scores = make([]float64, surface.Width*surface.Height)

	stats := newTemplateStats(tmpl)
	tables := newIntegrals(src)

	bands := m.workers * 4
	if bands > surface.Height {
		bands = surface.Height
	}
	rowsPerBand := (surface.Height + bands - 1) / bands
	evaluated := make([]int, bands)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for b := 0; b < bands; b++ {
		b := b
		y0 := b * rowsPerBand
		y1 := min(y0+rowsPerBand, surface.Height)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				for x := 0; x < surface.Width; x++ {
					idx := y*surface.Width + x
					if mask != nil && !mask[idx] {
						continue
					}
					surface.Scores[idx] = nccAt(src, tw, th, &stats, tables, x, y)
					evaluated[b]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, n := range evaluated {
		surface.Evaluated += n
	}
	return surface, nil
}

// nccAt returns the channel-averaged correlation of the template placed
// at (x, y), clamped to [0, 1].
func nccAt(src *imaging.PixelBuffer, tw, th int, stats *templateStats, tables []integral, x, y int) float64 {
	ch := src.Channels()
	sw := src.Width()
	pix := src.Pix()
	n := float64(tw * th)

	var cross [imaging.RGBA]float64
	for ty := 0; ty < th; ty++ {
		srow := ((y+ty)*sw + x) * ch
		trow := ty * tw
		for tx := 0; tx < tw; tx++ {
			s := pix[srow+tx*ch : srow+tx*ch+ch]
			for c := 0; c < ch; c++ {
				cross[c] += stats.zero[c][trow+tx] * float64(s[c])
			}
		}
	}

	var total float64
	for c := 0; c < ch; c++ {
		sum, sq := tables[c].window(x, y, tw, th)
		sVar := float64(sq) - float64(sum)*float64(sum)/n
		tFlat := stats.variance[c] < flatVariance
		sFlat := sVar < flatVariance
		switch {
		case tFlat && sFlat:
			total++
		case tFlat || sFlat:
		default:
			total += cross[c] / math.Sqrt(stats.variance[c]*sVar)
		}
	}

	score := total / float64(ch)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func sizeOf(p *imaging.PixelBuffer) slog.Value {
	return slog.GroupValue(
		slog.Int("w", p.Width()),
		slog.Int("h", p.Height()),
		slog.Int("ch", p.Channels()),
	)
}
