package policy

import (
	"math"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/spatial"
	"gonum.org/v1/gonum/floats"
)

// ObsScales are the normalization constants of the observation.
type ObsScales struct {
	AngVel       float64
	DofPos       float64
	DofVel       float64
	Cmd          [3]float64
	Defaults     []float64
	IncludePhase bool
}

func ScalesFromConfig(c *config.Config) ObsScales {
	return ObsScales{
		AngVel:       c.AngVelScale,
		DofPos:       c.DofPosScale,
		DofVel:       c.DofVelScale,
		Cmd:          [3]float64{c.CmdScale[0], c.CmdScale[1], c.CmdScale[2]},
		Defaults:     append([]float64(nil), c.DefaultAngles...),
		IncludePhase: c.IncludePhaseInObs,
	}
}

// Dim is 9 + 3n, plus 2 with the phase terms.
func (s ObsScales) Dim() int {
	n := 9 + 3*len(s.Defaults)
	if s.IncludePhase {
		n += 2
	}
	return n
}

// ObsInput is the robot state sampled at a control tick.
type ObsInput struct {
	Quat       [4]float64
	AngVel     dynamo.Vec3 // world frame
	Command    dynamo.Command
	Q          []float64
	DQ         []float64
	PrevAction dynamo.Action
	Phase      float64
}

// Observer assembles observations into a reused buffer.
type Observer struct {
	scales ObsScales
	buf    []float32
	work   []float64
}

func NewObserver(s ObsScales) *Observer {
	return &Observer{
		scales: s,
		buf:    make([]float32, s.Dim()),
		work:   make([]float64, len(s.Defaults)),
	}
}

func (o *Observer) Dim() int { return len(o.buf) }

// Build fills and returns the observation:
// [w*s_w, g_base, cmd*s_cmd, (q-q0)*s_q, dq*s_dq, a_prev, sin 2pi phase, cos 2pi phase].
// The returned slice is reused by the next call.
func (o *Observer) Build(in ObsInput) []float32 {
	n := len(o.scales.Defaults)
	buf := o.buf

	w := spatial.WorldToBase(in.Quat, in.AngVel).Scale(o.scales.AngVel)
	g := spatial.GravityOrientation(in.Quat)
	cmd := in.Command.Vec()
	for i := 0; i < 3; i++ {
		buf[i] = float32(w[i])
		buf[3+i] = float32(g[i])
		buf[6+i] = float32(cmd[i] * o.scales.Cmd[i])
	}

	floats.SubTo(o.work, in.Q, o.scales.Defaults)
	floats.Scale(o.scales.DofPos, o.work)
	put(buf[9:9+n], o.work)

	copy(o.work, in.DQ)
	floats.Scale(o.scales.DofVel, o.work)
	put(buf[9+n:9+2*n], o.work)

	for i := 0; i < n; i++ {
		v := 0.0
		if i < len(in.PrevAction) {
			v = in.PrevAction[i]
		}
		buf[9+2*n+i] = float32(v)
	}

	if o.scales.IncludePhase {
		s, c := math.Sincos(2 * math.Pi * in.Phase)
		buf[9+3*n] = float32(s)
		buf[10+3*n] = float32(c)
	}
	return buf
}

func put(dst []float32, src []float64) {
	for i, v := range src {
		dst[i] = float32(v)
	}
}
