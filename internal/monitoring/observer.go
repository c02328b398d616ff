package monitoring

import (
	"time"

	"github.com/banshee-data/forest.report/internal/timeutil"
)

// StepTiming records how one named pipeline step went.
type StepTiming struct {
	Name    string
	Started time.Time
	Elapsed time.Duration
	Err     error
}

// Observer is the observability context a caller hands to a run. It owns
// where log lines go and which clock times them; the analysis code itself
// never logs.
type Observer struct {
	Logf  func(format string, v ...interface{})
	Clock timeutil.Clock

	steps []StepTiming
}

// NewObserver returns an Observer that logs through the package Logf and
// times with the wall clock.
func NewObserver() *Observer {
	return &Observer{
		Logf:  func(format string, v ...interface{}) { Logf(format, v...) },
		Clock: timeutil.RealClock{},
	}
}

func (o *Observer) logf(format string, v ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, v...)
	}
}

// Log writes one line through Logf; a nil Logf drops it.
func (o *Observer) Log(format string, v ...interface{}) {
	o.logf(format, v...)
}

func (o *Observer) clock() timeutil.Clock {
	if o.Clock == nil {
		return timeutil.RealClock{}
	}
	return o.Clock
}

// Step logs the start of a named step and returns a function that must be
// called with the step's outcome. A nil error logs completion, anything
// else logs the failure; both record the elapsed time.
func (o *Observer) Step(name string) func(err error) {
	started := o.clock().Now()
	o.logf("[%s] started", name)
	return func(err error) {
		elapsed := o.clock().Since(started)
		o.steps = append(o.steps, StepTiming{Name: name, Started: started, Elapsed: elapsed, Err: err})
		if err != nil {
			o.logf("[%s] failed after %v: %v", name, elapsed, err)
			return
		}
		o.logf("[%s] done in %v", name, elapsed)
	}
}

// Steps returns the timings recorded so far in completion order.
func (o *Observer) Steps() []StepTiming {
	out := make([]StepTiming, len(o.steps))
	copy(out, o.steps)
	return out
}
