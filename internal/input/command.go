package input

import (
	"math"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/mode"
)

// Mapper turns frames into commands. It keeps the forward filter state used
// in Run mode.
type Mapper struct {
	runAlpha float64
	prevVx   float64
}

func NewMapper(runAlpha float64) *Mapper {
	return &Mapper{runAlpha: runAlpha}
}

// Reset sets the forward filter state, e.g. to the initial command after a robot reset.
func (m *Mapper) Reset(vx float64) { m.prevVx = vx }

// Apply returns the command for this tick given the previous one.
func (m *Mapper) Apply(f Frame, cmd dynamo.Command, md mode.Mode, lim config.Limits) dynamo.Command {
	var next dynamo.Command
	switch f.Kind {
	case Absolute:
		next = m.absolute(f.Sticks, md, lim)
	default:
		next = cmd
		if f.Has(EventClearCommand) {
			next = dynamo.Command{}
		}
		next.Vx += f.Step.Vx
		next.Vy += f.Step.Vy
		next.Wz += f.Step.Wz
		next = Clamp(next, lim)
		m.prevVx = next.Vx
	}
	if md == mode.DisturbanceTest {
		next.Wz = 0
	}
	return next
}

func (m *Mapper) absolute(s Sticks, md mode.Mode, lim config.Limits) dynamo.Command {
	vx := s.RightY * lim.MaxForward
	if s.RightY < 0 {
		vx = s.RightY * lim.MaxBackward
	}

	// Run mode smooths acceleration only; braking passes straight through.
	if md == mode.Run && vx > m.prevVx {
		vx = m.runAlpha*vx + (1-m.runAlpha)*m.prevVx
	}
	m.prevVx = vx

	return dynamo.Command{
		Vx: vx,
		Vy: s.RightX * lim.MaxLateral,
		Wz: s.LeftX * lim.MaxAngular,
	}
}

// Clamp bounds each component by the mode limits.
func Clamp(c dynamo.Command, lim config.Limits) dynamo.Command {
	return dynamo.Command{
		Vx: clamp(c.Vx, -lim.MaxBackward, lim.MaxForward),
		Vy: clamp(c.Vy, -lim.MaxLateral, lim.MaxLateral),
		Wz: clamp(c.Wz, -lim.MaxAngular, lim.MaxAngular),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
