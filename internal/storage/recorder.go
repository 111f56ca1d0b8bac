package storage

import "github.com/san-kum/e3deploy/internal/dynamo"

// Recorder keeps control ticks for a fixed window of simulated time from the
// first tick after start or Restart.
type Recorder struct {
	window  float64
	start   float64
	started bool
	samples []Sample
}

// NewRecorder records window seconds. A non-positive window records nothing.
func NewRecorder(window float64) *Recorder {
	return &Recorder{window: window}
}

func (r *Recorder) Enabled() bool { return r.window > 0 }

func (r *Recorder) OnTick(t dynamo.Tick) {
	if !r.Enabled() {
		return
	}
	if !r.started {
		r.start = t.Time
		r.started = true
	}
	if t.Time-r.start > r.window {
		return
	}
	r.samples = append(r.samples, Sample{
		Time:     t.Time - r.start,
		Torque:   append([]float64(nil), t.Torque...),
		JointVel: append([]float64(nil), t.JointVel...),
	})
}

// Full reports whether the window has elapsed at time t.
func (r *Recorder) Full(t float64) bool {
	return r.started && t-r.start > r.window
}

// Restart drops recorded samples and opens a new window.
func (r *Recorder) Restart() {
	r.samples = nil
	r.started = false
}

func (r *Recorder) Samples() []Sample { return r.samples }
