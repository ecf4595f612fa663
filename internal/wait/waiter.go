package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/match"
)

// Defaults used when a Spec leaves Interval or Timeout unset.
const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// State is the lifecycle position of a wait.
type State int

const (
	Polling State = iota
	Succeeded
	TimedOut
	Failed
	Cancelled
)

var stateNames = map[State]string{
	Polling:   "polling",
	Succeeded: "succeeded",
	TimedOut:  "timed_out",
	Failed:    "failed",
	Cancelled: "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown wait state %q", text)
}

// Terminal reports whether the state ends a wait.
func (s State) Terminal() bool {
	return s != Polling
}

// Spec describes what to wait for.
type Spec struct {
	Template  *imaging.PixelBuffer
	Threshold float64
	Capture   CaptureProvider

	// Interval is the delay between polls. Values <= 0 use DefaultInterval.
	Interval time.Duration

	// Timeout bounds the whole wait. Values <= 0 poll exactly once.
	Timeout time.Duration
}

// Result summarises a finished wait.
type Result struct {
	Session   string           `json:"session"`
	State     State            `json:"state"`
	Candidate *match.Candidate `json:"candidate,omitempty"`
	Polls     int              `json:"polls"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Options configure a Waiter.
type Options struct {
	Searcher *match.Searcher
	Clock    func() time.Time
	Sleeper  func(context.Context, time.Duration) error
	Logger   *slog.Logger
}

// Waiter polls for templates. It keeps no per-wait state and is safe for
// concurrent use.
type Waiter struct {
	searcher *match.Searcher
	clock    func() time.Time
	sleeper  func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// New returns a Waiter, filling unset options with real-time defaults.
func New(opts Options) *Waiter {
	searcher := opts.Searcher
	if searcher == nil {
		searcher = match.NewSearcher()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Waiter{searcher: searcher, clock: clock, sleeper: sleeper, logger: logger}
}

// Wait polls spec.Capture until the template is found, the timeout
// elapses, the context is cancelled, or an error occurs.
//
// The returned error is non-nil only when the result state is Failed.
// Capture failures are wrapped in *CaptureError and are not retried.
func (w *Waiter) Wait(ctx context.Context, spec Spec) (Result, error) {
	res := Result{Session: uuid.NewString(), State: Polling}
	logger := w.logger.With("session", res.Session)

	if err := validateSpec(spec); err != nil {
		res.State = Failed
		return res, err
	}
	interval := spec.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := w.clock()
	logger.Debug("wait started",
		"threshold", spec.Threshold, "interval", interval, "timeout", spec.Timeout)

	finish := func(state State, err error) (Result, error) {
		res.State = state
		res.Elapsed = w.clock().Sub(start)
		attrs := []any{"state", state.String(), "polls", res.Polls, "elapsed", res.Elapsed}
		if err != nil {
			logger.Warn("wait failed", append(attrs, "error", err)...)
		} else {
			logger.Debug("wait finished", attrs...)
		}
		return res, err
	}

	for {
		if ctx.Err() != nil {
			return finish(Cancelled, nil)
		}

		res.Polls++
		frame, err := spec.Capture.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return finish(Cancelled, nil)
			}
			return finish(Failed, &CaptureError{Poll: res.Polls, Err: err})
		}

		best, err := w.searcher.FindBest(ctx, spec.Template, frame, spec.Threshold)
		if err != nil {
			if ctx.Err() != nil {
				return finish(Cancelled, nil)
			}
			return finish(Failed, fmt.Errorf("search failed on poll %d: %w", res.Polls, err))
		}
		if best != nil {
			res.Candidate = best
			return finish(Succeeded, nil)
		}

		elapsed := w.clock().Sub(start)
		if elapsed >= spec.Timeout {
			return finish(TimedOut, nil)
		}
		delay := interval
		if remaining := spec.Timeout - elapsed; remaining < delay {
			delay = remaining
		}
		logger.Debug("template not found, sleeping", "poll", res.Polls, "delay", delay)
		if err := w.sleeper(ctx, delay); err != nil {
			return finish(Cancelled, nil)
		}
	}
}

func validateSpec(spec Spec) error {
	if spec.Template == nil {
		return errors.New("wait spec has no template")
	}
	if spec.Capture == nil {
		return errors.New("wait spec has no capture provider")
	}
	return match.Query{Template: spec.Template, Source: spec.Template, Threshold: spec.Threshold}.Validate()
}

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
