// Package wait polls a capture provider until a template appears.
//
// A [Waiter] runs a small state machine per call: it starts Polling,
// captures a frame, searches it, and either finishes or sleeps until the
// next tick. Every run ends in exactly one terminal [State]:
//
//	Succeeded  the template was found on some poll
//	TimedOut   the timeout elapsed without a match
//	Failed     capture or search returned an error
//	Cancelled  the context was cancelled
//
// A timeout of zero performs a single poll, which is how callers ask
// "is it on screen right now".
//
// The clock and sleep function are injectable so tests can drive the loop
// without real delays:
//
//	w := wait.New(wait.Options{Searcher: match.NewSearcher()})
//	res, err := w.Wait(ctx, wait.Spec{
//	    Template:  button,
//	    Threshold: 0.95,
//	    Capture:   capture.Screen{Channels: imaging.RGB},
//	    Interval:  100 * time.Millisecond,
//	    Timeout:   5 * time.Second,
//	})
package wait
