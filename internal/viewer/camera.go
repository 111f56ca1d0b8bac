// Package viewer holds camera parameters and display toggles.
package viewer

import (
	"math"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

const (
	MinDistance = 0.5
	MaxDistance = 10.0

	TrackAngle     = 0.0
	TrackElevation = -0.15
	TrackDistance  = 3.0
)

// MaxElevation is 89 degrees.
var MaxElevation = 89 * math.Pi / 180

type Camera struct {
	Angle     float64
	Elevation float64
	Distance  float64
}

func NewCamera() Camera {
	return Camera{Angle: TrackAngle, Elevation: TrackElevation, Distance: TrackDistance}
}

// Rotate adds d radians to the azimuth, wrapping into [0, 2pi).
func (c *Camera) Rotate(d float64) {
	a := math.Mod(c.Angle+d, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	c.Angle = a
}

func (c *Camera) Elevate(d float64) {
	c.Elevation = math.Max(-MaxElevation, math.Min(MaxElevation, c.Elevation+d))
}

func (c *Camera) Zoom(d float64) {
	c.Distance = math.Max(MinDistance, math.Min(MaxDistance, c.Distance+d))
}

// Track resets to the default view facing the robot.
func (c *Camera) Track() {
	*c = NewCamera()
}

// Eye returns the camera position when looking at target.
func (c Camera) Eye(target dynamo.Vec3) dynamo.Vec3 {
	ce := math.Cos(c.Elevation)
	return target.Add(dynamo.Vec3{
		c.Distance * ce * math.Cos(c.Angle),
		c.Distance * ce * math.Sin(c.Angle),
		-c.Distance * math.Sin(c.Elevation),
	})
}

// Flags are the viewer toggles driven by input events.
type Flags struct {
	ShowForces    bool
	ShowContacts  bool
	CameraControl bool
}
