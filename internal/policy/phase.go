package policy

import (
	"math"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

const (
	WalkPeriod = 0.8
	RunPeriod  = 0.7

	// RunSpeed is the forward command above which the run period applies.
	RunSpeed = 1.1

	movingTwist   = 0.2
	movingCommand = 0.1
	phaseCutoff   = 1e-3
)

// Phase is the gait clock in [0, 1).
type Phase struct {
	value float64
	dt    float64
}

// NewPhase advances by dt per tick, normally simulation_dt * decimation.
func NewPhase(dt float64) *Phase {
	return &Phase{dt: dt}
}

func (p *Phase) Value() float64 { return p.value }
func (p *Phase) Reset()         { p.value = 0 }

// Update advances the clock while the robot moves or is commanded to, and
// decays it toward 0 at rest. actual is the base-frame (vx, vy, wz).
func (p *Phase) Update(actual dynamo.Vec3, cmd dynamo.Command) float64 {
	if actual.Norm() > movingTwist || cmd.Norm() > movingCommand {
		period := WalkPeriod
		if math.Abs(cmd.Vx) > RunSpeed {
			period = RunPeriod
		}
		p.value = math.Mod(p.value+p.dt/period, 1)
		return p.value
	}
	p.value *= 0.5
	if p.value < phaseCutoff {
		p.value = 0
	}
	return p.value
}
