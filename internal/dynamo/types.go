package dynamo

import (
	"fmt"
	"math"
)

// Vec3 is a cartesian vector in either world or base frame.
type Vec3 [3]float64

func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v[0] * f, v[1] * f, v[2] * f}
}

// Command is the commanded base twist fed to the policy.
type Command struct {
	Vx float64 // forward velocity (m/s)
	Vy float64 // lateral velocity (m/s)
	Wz float64 // yaw rate (rad/s)
}

func (c Command) Vec() Vec3 { return Vec3{c.Vx, c.Vy, c.Wz} }

func (c Command) Norm() float64 { return c.Vec().Norm() }

func (c Command) String() string {
	return fmt.Sprintf("[%.3f, %.3f, %.3f]", c.Vx, c.Vy, c.Wz)
}

// Action is one actor output, one entry per actuated joint.
type Action []float64

func (a Action) Clone() Action {
	c := make(Action, len(a))
	copy(c, a)
	return c
}

func (a Action) IsValid() bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Equal reports whether both actions hold identical values.
func (a Action) Equal(b Action) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Snapshot holds the generalized coordinates of a simulator.
// Qpos is [base pos (3), base quat wxyz (4), joints (n)] and
// Qvel is [base lin vel (3), base ang vel (3), joints (n)], both in world frame.
type Snapshot struct {
	Qpos []float64
	Qvel []float64
}

func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Qpos: make([]float64, len(s.Qpos)),
		Qvel: make([]float64, len(s.Qvel)),
	}
	copy(c.Qpos, s.Qpos)
	copy(c.Qvel, s.Qvel)
	return c
}

// Simulator is the physics backend driven by the stepper.
type Simulator interface {
	Timestep() float64
	NumJoints() int
	Step() error

	// SetControl sets actuator torques used by subsequent steps.
	SetControl(tau []float64)

	JointPositions() []float64
	JointVelocities() []float64
	// BaseQuat returns the base orientation as w, x, y, z.
	BaseQuat() [4]float64
	// BaseLinearVelocity and BaseAngularVelocity are expressed in the world frame.
	BaseLinearVelocity() Vec3
	BaseAngularVelocity() Vec3

	BodyID(name string) (int, bool)
	BodyPosition(id int) Vec3
	// ApplyForce sets the external world-frame wrench on a body until cleared.
	ApplyForce(id int, force, torque Vec3)
	ClearForces()

	Snapshot() Snapshot
	Restore(s Snapshot)
}

// Tick is the per-control-tick sample handed to metrics and observers.
type Tick struct {
	Time        float64
	Step        int
	Command     Command
	Actual      Vec3
	Torque      []float64
	JointVel    []float64
	Disturbance Vec3
}

type Metric interface {
	Name() string
	Observe(t Tick)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(t Tick)
}

type StepError struct {
	Time    float64
	Step    int
	Message string
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}

// State is a flat ODE state vector.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u []float64, t float64) State
}

type Integrator interface {
	Step(dyn System, x State, u []float64, t, dt float64) State
}
