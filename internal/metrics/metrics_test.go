package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	if m.Value() != 0 {
		t.Errorf("expected 0 before samples, got %f", m.Value())
	}

	m.Observe(dynamo.Tick{Torque: []float64{1, -3}})
	m.Observe(dynamo.Tick{Torque: []float64{2, 2}})

	if math.Abs(m.Value()-2.0) > 1e-12 {
		t.Errorf("expected mean |tau| 2.0, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", m.Value())
	}
}

func TestTrackingError(t *testing.T) {
	m := NewTrackingError()
	m.Observe(dynamo.Tick{Command: dynamo.Command{Vx: 1}, Actual: dynamo.Vec3{1, 0, 0}})
	m.Observe(dynamo.Tick{Command: dynamo.Command{Vx: 1}, Actual: dynamo.Vec3{0, 0, 0}})

	if math.Abs(m.Value()-0.5) > 1e-12 {
		t.Errorf("expected 0.5, got %f", m.Value())
	}
	if m.Name() != "tracking_error" {
		t.Errorf("unexpected name %q", m.Name())
	}
}

func TestMaxDisturbance(t *testing.T) {
	m := NewMaxDisturbance()
	for _, f := range []dynamo.Vec3{{3, 4, 0}, {0, 1, 0}, {0, 0, 0}} {
		m.Observe(dynamo.Tick{Disturbance: f})
	}
	if m.Value() != 5 {
		t.Errorf("expected 5, got %f", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	m := NewStability(0.5)
	if m.Value() != 1.0 {
		t.Errorf("expected 1.0 with no samples, got %f", m.Value())
	}

	m.Observe(dynamo.Tick{Command: dynamo.Command{Vx: 1}, Actual: dynamo.Vec3{0.9, 0, 0}})
	m.Observe(dynamo.Tick{Command: dynamo.Command{Vx: 1}, Actual: dynamo.Vec3{0, 0, 0}})

	if math.Abs(m.Value()-0.5) > 1e-12 {
		t.Errorf("expected 0.5, got %f", m.Value())
	}
}

func TestCollect(t *testing.T) {
	ms := Standard()
	for _, m := range ms {
		m.Observe(dynamo.Tick{
			Command:     dynamo.Command{Vx: 0.5},
			Actual:      dynamo.Vec3{0.5, 0, 0},
			Torque:      []float64{1},
			Disturbance: dynamo.Vec3{10, 0, 0},
		})
	}

	got := Collect(ms)
	want := map[string]float64{
		"tracking_error":  0,
		"control_effort":  1,
		"max_disturbance": 10,
		"stability":       1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s: expected %f, got %f", name, v, got[name])
		}
	}
}
