package metrics

import "github.com/san-kum/e3deploy/internal/dynamo"

// TrackingError is the mean norm of commanded minus actual (vx, vy, wz).
type TrackingError struct {
	sum     float64
	samples int
}

func NewTrackingError() *TrackingError { return &TrackingError{} }

func (e *TrackingError) Name() string { return "tracking_error" }

func (e *TrackingError) Observe(t dynamo.Tick) {
	e.sum += t.Command.Vec().Sub(t.Actual).Norm()
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *TrackingError) Reset() {
	e.sum = 0
	e.samples = 0
}

// MaxDisturbance is the largest external force magnitude seen.
type MaxDisturbance struct {
	max float64
}

func NewMaxDisturbance() *MaxDisturbance { return &MaxDisturbance{} }

func (d *MaxDisturbance) Name() string { return "max_disturbance" }

func (d *MaxDisturbance) Observe(t dynamo.Tick) {
	if f := t.Disturbance.Norm(); f > d.max {
		d.max = f
	}
}

func (d *MaxDisturbance) Value() float64 { return d.max }
func (d *MaxDisturbance) Reset()         { d.max = 0 }
