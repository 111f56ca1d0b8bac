// Package disturbance pushes a robot body with an operator-controlled force.
package disturbance

import (
	"fmt"
	"math"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/spatial"
)

// BaseForce maps a stick deflection to a horizontal force in the robot base
// frame. Stick Y pushes along base x, stick X along base y. The stick
// magnitude is clamped to 1.
func BaseForce(stickX, stickY, scale float64) dynamo.Vec3 {
	mag := math.Hypot(stickX, stickY)
	if mag == 0 {
		return dynamo.Vec3{}
	}
	clamped := math.Min(mag, 1)
	return dynamo.Vec3{
		stickY / mag * clamped * scale,
		stickX / mag * clamped * scale,
		0,
	}
}

// Applicator holds the force currently applied to one body.
type Applicator struct {
	sim   dynamo.Simulator
	body  int
	name  string
	scale float64
	world dynamo.Vec3
}

func New(sim dynamo.Simulator, bodyName string, scale float64) (*Applicator, error) {
	id, ok := sim.BodyID(bodyName)
	if !ok {
		return nil, fmt.Errorf("%w: disturbance body %q not in scene", dynamo.ErrConfig, bodyName)
	}
	return &Applicator{sim: sim, body: id, name: bodyName, scale: scale}, nil
}

func (a *Applicator) BodyName() string { return a.name }

// Update recomputes the world-frame force from the stick. Inactive means zero.
func (a *Applicator) Update(active bool, stickX, stickY float64) dynamo.Vec3 {
	if !active {
		a.world = dynamo.Vec3{}
		return a.world
	}
	base := BaseForce(stickX, stickY, a.scale)
	yaw := spatial.Yaw(a.sim.BaseQuat())
	a.world = spatial.Rotate(spatial.FromYaw(yaw), base)
	return a.world
}

// Force is the current world-frame force.
func (a *Applicator) Force() dynamo.Vec3 { return a.world }

// Magnitude is the norm of the current force in newtons.
func (a *Applicator) Magnitude() float64 { return a.world.Norm() }

// Apply writes the current force into the simulator. Call before every physics step.
func (a *Applicator) Apply() {
	a.sim.ApplyForce(a.body, a.world, dynamo.Vec3{})
}

// Clear zeroes the force and every external wrench in the simulator.
func (a *Applicator) Clear() {
	a.world = dynamo.Vec3{}
	a.sim.ClearForces()
}
