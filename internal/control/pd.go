package control

import (
	"fmt"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

type PD struct {
	Kp          []float64
	Kd          []float64
	Defaults    []float64
	ActionScale float64
	target      []float64
}

func NewPD(kp, kd, defaults []float64, actionScale float64) *PD {
	p := &PD{
		Kp:          append([]float64(nil), kp...),
		Kd:          append([]float64(nil), kd...),
		Defaults:    append([]float64(nil), defaults...),
		ActionScale: actionScale,
		target:      make([]float64, len(defaults)),
	}
	p.Reset()
	return p
}

// SetAction latches joint targets action*scale + defaults.
func (p *PD) SetAction(a dynamo.Action) error {
	if len(a) != len(p.target) {
		return fmt.Errorf("%w: action has %d entries, expected %d",
			dynamo.ErrShapeMismatch, len(a), len(p.target))
	}
	for i := range p.target {
		p.target[i] = a[i]*p.ActionScale + p.Defaults[i]
	}
	return nil
}

// Reset puts the targets back on the default pose.
func (p *PD) Reset() {
	copy(p.target, p.Defaults)
}

func (p *PD) Targets() []float64 {
	out := make([]float64, len(p.target))
	copy(out, p.target)
	return out
}

// Compute returns kp*(target-q) - kd*dq per joint.
func (p *PD) Compute(q, dq []float64) []float64 {
	tau := make([]float64, len(p.target))
	for i := range tau {
		tau[i] = p.Kp[i]*(p.target[i]-q[i]) - p.Kd[i]*dq[i]
	}
	return tau
}

// Gains is the PD setting of one joint.
type Gains struct {
	Kp, Kd, Target float64
}

// GetParams returns the gains and current target of joint i.
func (p *PD) GetParams(i int) Gains {
	return Gains{Kp: p.Kp[i], Kd: p.Kd[i], Target: p.target[i]}
}
