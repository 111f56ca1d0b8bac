package viewer

import (
	"math"
	"testing"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/stretchr/testify/assert"
)

func TestRotateWraps(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		delta float64
		want  float64
	}{
		{"forward", 0, 0.5, 0.5},
		{"past two pi", 2*math.Pi - 0.1, 0.3, 0.2},
		{"negative", 0.1, -0.3, 2*math.Pi - 0.2},
		{"full turn", 1, 2 * math.Pi, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Camera{Angle: tt.start}
			c.Rotate(tt.delta)
			assert.InDelta(t, tt.want, c.Angle, 1e-9)
			assert.GreaterOrEqual(t, c.Angle, 0.0)
			assert.Less(t, c.Angle, 2*math.Pi)
		})
	}
}

func TestElevationClamp(t *testing.T) {
	c := NewCamera()
	for i := 0; i < 100; i++ {
		c.Elevate(0.1)
	}
	assert.InDelta(t, MaxElevation, c.Elevation, 1e-12)

	for i := 0; i < 100; i++ {
		c.Elevate(-0.1)
	}
	assert.InDelta(t, -MaxElevation, c.Elevation, 1e-12)
}

func TestDistanceClamp(t *testing.T) {
	c := NewCamera()
	c.Zoom(100)
	assert.Equal(t, MaxDistance, c.Distance)
	c.Zoom(-100)
	assert.Equal(t, MinDistance, c.Distance)
}

func TestTrackResets(t *testing.T) {
	c := Camera{Angle: 2, Elevation: 0.7, Distance: 8}
	c.Track()
	assert.Equal(t, Camera{Angle: 0, Elevation: -0.15, Distance: 3}, c)
}

func TestEye(t *testing.T) {
	c := Camera{Angle: 0, Elevation: 0, Distance: 2}
	eye := c.Eye(dynamo.Vec3{1, 0, 1})
	assert.InDelta(t, 3.0, eye[0], 1e-12)
	assert.InDelta(t, 0.0, eye[1], 1e-12)
	assert.InDelta(t, 1.0, eye[2], 1e-12)
}
