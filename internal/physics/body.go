package physics

import (
	"fmt"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/integrators"
	"github.com/san-kum/e3deploy/internal/spatial"
)

type wrench struct {
	force  dynamo.Vec3
	torque dynamo.Vec3
}

var _ dynamo.Simulator = (*Body)(nil)

// Body is the floating-base model. It is not safe for concurrent use.
type Body struct {
	scene  *Scene
	integ  dynamo.Integrator
	dt     float64
	t      float64
	steps  int
	n      int
	x      dynamo.State
	ctrl   []float64
	xfrc   []wrench
	bodies map[string]int
}

// Load reads a scene file and builds a body stepping at dt.
func Load(path string, dt float64) (*Body, error) {
	scene, err := LoadScene(path)
	if err != nil {
		return nil, err
	}
	return New(scene, dt), nil
}

func New(scene *Scene, dt float64) *Body {
	n := len(scene.Joints)
	b := &Body{
		scene:  scene,
		integ:  integrators.NewRK4(),
		dt:     dt,
		n:      n,
		x:      make(dynamo.State, 13+2*n),
		ctrl:   make([]float64, n),
		bodies: make(map[string]int),
	}

	// Body 0 is always the floating base.
	b.bodies["base"] = 0
	b.xfrc = make([]wrench, len(scene.Bodies)+1)
	for i, bc := range scene.Bodies {
		b.bodies[bc.Name] = i + 1
	}

	b.x[2] = scene.Base.Height
	b.x[3] = 1
	for i, j := range scene.Joints {
		b.x[7+i] = j.Init
	}
	return b
}

func (b *Body) Timestep() float64 { return b.dt }
func (b *Body) NumJoints() int    { return b.n }
func (b *Body) Time() float64     { return b.t }
func (b *Body) Scene() *Scene     { return b.scene }

func (b *Body) SetControl(tau []float64) {
	copy(b.ctrl, tau)
}

func (b *Body) Step() error {
	next := b.integ.Step(b, b.x, b.ctrl, b.t, b.dt)
	q := spatial.Normalize([4]float64{next[3], next[4], next[5], next[6]})
	copy(next[3:7], q[:])

	if !next.IsValid() {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidState,
			dynamo.StepError{Time: b.t, Step: b.steps, Message: "simulator state diverged"})
	}
	b.x = next
	b.t += b.dt
	b.steps++
	return nil
}

func (b *Body) Snapshot() dynamo.Snapshot {
	n := b.n
	s := dynamo.Snapshot{
		Qpos: make([]float64, 7+n),
		Qvel: make([]float64, 6+n),
	}
	copy(s.Qpos, b.x[:7+n])
	copy(s.Qvel, b.x[7+n:])
	return s
}

func (b *Body) Restore(s dynamo.Snapshot) {
	copy(b.x[:7+b.n], s.Qpos)
	copy(b.x[7+b.n:], s.Qvel)
}

func (b *Body) JointPositions() []float64 {
	out := make([]float64, b.n)
	copy(out, b.x[7:7+b.n])
	return out
}

func (b *Body) JointVelocities() []float64 {
	out := make([]float64, b.n)
	copy(out, b.x[13+b.n:])
	return out
}

func (b *Body) BaseQuat() [4]float64 {
	return [4]float64{b.x[3], b.x[4], b.x[5], b.x[6]}
}

func (b *Body) BasePosition() dynamo.Vec3 {
	return dynamo.Vec3{b.x[0], b.x[1], b.x[2]}
}

func (b *Body) BaseLinearVelocity() dynamo.Vec3 {
	i := 7 + b.n
	return dynamo.Vec3{b.x[i], b.x[i+1], b.x[i+2]}
}

func (b *Body) BaseAngularVelocity() dynamo.Vec3 {
	i := 10 + b.n
	return dynamo.Vec3{b.x[i], b.x[i+1], b.x[i+2]}
}

func (b *Body) BodyID(name string) (int, bool) {
	id, ok := b.bodies[name]
	return id, ok
}

func (b *Body) offset(id int) dynamo.Vec3 {
	if id <= 0 || id > len(b.scene.Bodies) {
		return dynamo.Vec3{}
	}
	return dynamo.Vec3(b.scene.Bodies[id-1].Offset)
}

func (b *Body) BodyPosition(id int) dynamo.Vec3 {
	return b.BasePosition().Add(spatial.Rotate(b.BaseQuat(), b.offset(id)))
}

func (b *Body) ApplyForce(id int, force, torque dynamo.Vec3) {
	if id < 0 || id >= len(b.xfrc) {
		return
	}
	b.xfrc[id] = wrench{force: force, torque: torque}
}

func (b *Body) ClearForces() {
	for i := range b.xfrc {
		b.xfrc[i] = wrench{}
	}
}

// ExternalForce returns the sum of applied external forces.
func (b *Body) ExternalForce() dynamo.Vec3 {
	var f dynamo.Vec3
	for _, w := range b.xfrc {
		f = f.Add(w.force)
	}
	return f
}

// Derive implements dynamo.System over the full state vector.
func (b *Body) Derive(x dynamo.State, u []float64, t float64) dynamo.State {
	n := b.n
	base := b.scene.Base
	dx := make(dynamo.State, len(x))

	iV, iW, iDJ := 7+n, 10+n, 13+n
	v := dynamo.Vec3{x[iV], x[iV+1], x[iV+2]}
	w := dynamo.Vec3{x[iW], x[iW+1], x[iW+2]}
	q := [4]float64{x[3], x[4], x[5], x[6]}

	copy(dx[0:3], v[:])
	qd := spatial.Derivative(q, w)
	copy(dx[3:7], qd[:])
	copy(dx[7:7+n], x[iDJ:iDJ+n])

	force := dynamo.Vec3{-base.Drag * v[0], -base.Drag * v[1], -base.Mass * b.scene.Gravity}
	if pen := base.Height - x[2]; pen > 0 {
		if fz := base.SupportStiffness*pen - base.SupportDamping*v[2]; fz > 0 {
			force[2] += fz
		}
	}

	up := spatial.Rotate(q, dynamo.Vec3{0, 0, 1})
	torque := spatial.Cross(up, dynamo.Vec3{0, 0, 1}).Scale(base.UprightStiffness)
	torque[0] -= base.UprightDamping * w[0]
	torque[1] -= base.UprightDamping * w[1]
	torque[2] -= base.YawDrag * w[2]

	for id, ext := range b.xfrc {
		force = force.Add(ext.force)
		arm := spatial.Rotate(q, b.offset(id))
		torque = torque.Add(ext.torque).Add(spatial.Cross(arm, ext.force))
	}

	for i := 0; i < 3; i++ {
		dx[iV+i] = force[i] / base.Mass
		dx[iW+i] = torque[i] / base.Inertia[i]
	}

	for i, j := range b.scene.Joints {
		pos, vel := x[7+i], x[iDJ+i]
		tau := -j.Damping * vel
		if i < len(u) {
			tau += u[i]
		}
		if j.limited() {
			if pos < j.Range[0] {
				tau += DefaultLimitStiffness * (j.Range[0] - pos)
			} else if pos > j.Range[1] {
				tau -= DefaultLimitStiffness * (pos - j.Range[1])
			}
		}
		dx[iDJ+i] = tau / j.Inertia
	}

	return dx
}
