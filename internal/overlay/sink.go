package overlay

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/match"
)

// DebugSink writes an annotated PNG for every search it observes.
//
// Files are named search_<unix-millis>_<seq>.png inside Dir. Write
// failures are logged and otherwise ignored so that debugging never
// changes search results.
type DebugSink struct {
	Dir     string
	Options Options
	Logger  *slog.Logger
	Clock   func() time.Time

	seq atomic.Uint64
}

// NewDebugSink returns a sink writing into dir.
func NewDebugSink(dir string, opts Options, logger *slog.Logger) *DebugSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugSink{Dir: dir, Options: opts, Logger: logger, Clock: time.Now}
}

// Observer returns the sink as a match.Observer.
func (s *DebugSink) Observer() match.Observer {
	return s.Observe
}

// Observe renders the query source with its candidates and writes it.
func (s *DebugSink) Observe(q match.Query, found []match.Candidate) {
	path, err := s.write(q, found)
	if err != nil {
		s.Logger.Warn("failed to write debug image", "error", err)
		return
	}
	s.Logger.Debug("wrote debug image", "path", path, "candidates", len(found))
}

func (s *DebugSink) write(q match.Query, found []match.Candidate) (string, error) {
	opts := s.Options
	if opts.Threshold == 0 {
		opts.Threshold = q.Threshold
	}
	opts.ShowScores = true

	annotated, err := Render(q.Source, found, opts)
	if err != nil {
		return "", err
	}

	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	name := fmt.Sprintf("search_%d_%04d.png", clock().UnixMilli(), s.seq.Add(1))
	path := filepath.Join(s.Dir, name)
	if err := imaging.SavePNG(path, annotated.Image()); err != nil {
		return "", err
	}
	return path, nil
}
