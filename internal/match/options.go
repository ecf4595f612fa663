package match

import "log/slog"

// Option configures a Matcher or Searcher.
type Option func(*options)

type options struct {
	workers   int
	pyramid   Pyramid
	logger    *slog.Logger
	observers []Observer
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithWorkers bounds the number of goroutines scoring a surface.
// Values <= 0 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithPyramid enables coarse-to-fine scoring.
func WithPyramid(p Pyramid) Option {
	return func(o *options) {
		o.pyramid = p
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a function called with every completed search.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}
