package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/e3deploy/internal/control"
	"github.com/san-kum/e3deploy/internal/dynamo"
)

// Pacer blocks until the next physics step may run. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Hooks are called from the stepping goroutine. Nil hooks are skipped.
type Hooks struct {
	// BeforeStep runs ahead of every physics step.
	BeforeStep func(ctx context.Context) error
	// Control runs after every decimation-th physics step and may latch a new action.
	Control func(ctx context.Context) error
}

type Stepper struct {
	sim        dynamo.Simulator
	pd         *control.PD
	decimation int
	counter    int
	steps      int
	pacer      Pacer
	lastTorque []float64
}

func New(sim dynamo.Simulator, pd *control.PD, decimation int) *Stepper {
	if decimation < 1 {
		decimation = 1
	}
	return &Stepper{
		sim:        sim,
		pd:         pd,
		decimation: decimation,
		lastTorque: make([]float64, sim.NumJoints()),
	}
}

func (s *Stepper) SetPacer(p Pacer) { s.pacer = p }

func (s *Stepper) Simulator() dynamo.Simulator { return s.sim }
func (s *Stepper) Decimation() int             { return s.decimation }

// Counter is the number of physics steps since start or the last reset.
func (s *Stepper) Counter() int { return s.counter }

// Steps is the total number of physics steps taken.
func (s *Stepper) Steps() int { return s.steps }

func (s *Stepper) ResetCounter() { s.counter = 0 }

// Torque returns the joint torques applied on the last step.
func (s *Stepper) Torque() []float64 {
	out := make([]float64, len(s.lastTorque))
	copy(out, s.lastTorque)
	return out
}

// Step applies PD torque toward the latched targets and advances physics one
// timestep. It reports whether a control boundary was reached.
func (s *Stepper) Step() (bool, error) {
	tau := s.pd.Compute(s.sim.JointPositions(), s.sim.JointVelocities())
	s.sim.SetControl(tau)
	copy(s.lastTorque, tau)

	if err := s.sim.Step(); err != nil {
		return false, err
	}
	s.counter++
	s.steps++
	return s.counter%s.decimation == 0, nil
}

// Run steps until total physics steps have been taken, the context is done or
// a hook fails.
func (s *Stepper) Run(ctx context.Context, total int, hooks Hooks) error {
	for s.steps < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		if hooks.BeforeStep != nil {
			if err := hooks.BeforeStep(ctx); err != nil {
				return err
			}
		}

		tick, err := s.Step()
		if err != nil {
			return fmt.Errorf("physics step %d: %w", s.steps, err)
		}

		if tick && hooks.Control != nil {
			if err := hooks.Control(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
