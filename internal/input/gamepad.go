package input

import (
	"fmt"

	"github.com/0xcafed00d/joystick"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"go.uber.org/zap"
)

// axisScale converts driver readings to [-1, 1].
const axisScale = 32767.0

// hatThreshold is the raw reading past which a D-pad axis counts as pressed.
const hatThreshold = 16384

type GamepadOptions struct {
	Index       int
	Type        string
	AxisMapping []int
	HatAxes     []int
	Deadzone    float64
	Calibration *Calibration
	AngleStep   float64
	DistStep    float64
	Logger      *zap.Logger
}

type buttonBinding struct {
	name  string
	ids   []int
	event Event
}

// Gamepad reads a joystick device. Read failures are logged once and
// produce zero frames.
type Gamepad struct {
	js       joystick.Joystick
	opts     GamepadOptions
	mapping  [4]int
	bindings []buttonBinding
	edges    *EdgeDetector
	log      *zap.Logger
	failed   bool
}

// OpenGamepad opens the device at opts.Index.
func OpenGamepad(opts GamepadOptions) (*Gamepad, error) {
	js, err := joystick.Open(opts.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: joystick %d: %v", dynamo.ErrNoDevice, opts.Index, err)
	}
	return NewGamepad(js, opts), nil
}

func NewGamepad(js joystick.Joystick, opts GamepadOptions) *Gamepad {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cal := opts.Calibration
	g := &Gamepad{
		js:      js,
		opts:    opts,
		mapping: ResolveAxisMapping(opts.Type, opts.AxisMapping, cal),
		edges:   NewEdgeDetector(),
		log:     log.Named("gamepad"),
	}
	g.bindings = []buttonBinding{
		{"LB", cal.Button("LB", 4, 6), EventCycleMode},
		{"Y", cal.Button("Y", 3), EventToggleTracking},
		{"X", cal.Button("X", 0), EventToggleForces},
		{"A", cal.Button("A", 1), EventToggleContacts},
		{"B", cal.Button("B", 2), EventReset},
	}
	g.log.Info("Gamepad connected",
		zap.String("name", js.Name()),
		zap.Int("axes", js.AxisCount()),
		zap.Int("buttons", js.ButtonCount()),
		zap.Ints("axis_mapping", g.mapping[:]))
	return g
}

func (g *Gamepad) Name() string { return g.js.Name() }

// AxisMapping is the device axis order: left X, left Y, right X, right Y.
func (g *Gamepad) AxisMapping() [4]int { return g.mapping }

func (g *Gamepad) Poll() Frame {
	frame := Frame{Kind: Absolute}
	state, err := g.js.Read()
	if err != nil {
		if !g.failed {
			g.log.Warn("Gamepad read failed, using zero command", zap.Error(err))
			g.failed = true
		}
		return frame
	}
	if g.failed {
		g.log.Info("Gamepad read recovered")
		g.failed = false
	}

	// Pushing a stick up or left reads negative, so flip into command sign.
	frame.Sticks = Sticks{
		LeftX:  -g.axis(state, g.mapping[0]),
		LeftY:  -g.axis(state, g.mapping[1]),
		RightX: -g.axis(state, g.mapping[2]),
		RightY: -g.axis(state, g.mapping[3]),
	}

	for _, b := range g.bindings {
		if g.edges.Pressed(b.name, pressed(state, b.ids)) {
			frame.Events = append(frame.Events, b.event)
		}
	}

	if len(g.opts.HatAxes) == 2 {
		hx := hatValue(state, g.opts.HatAxes[0])
		hy := -hatValue(state, g.opts.HatAxes[1])
		frame.Camera = CameraDelta{
			Angle:    float64(hx) * g.opts.AngleStep,
			Distance: float64(hy) * g.opts.DistStep,
		}
	}
	return frame
}

func (g *Gamepad) axis(s joystick.State, index int) float64 {
	if index < 0 || index >= len(s.AxisData) {
		return 0
	}
	return Normalize(float64(s.AxisData[index])/axisScale, g.opts.Calibration.Axis(index), g.opts.Deadzone)
}

func (g *Gamepad) Close() error {
	g.js.Close()
	return nil
}

func pressed(s joystick.State, ids []int) bool {
	for _, id := range ids {
		if id >= 0 && id < 32 && s.Buttons&(1<<uint(id)) != 0 {
			return true
		}
	}
	return false
}

func hatValue(s joystick.State, index int) int {
	if index < 0 || index >= len(s.AxisData) {
		return 0
	}
	switch v := s.AxisData[index]; {
	case v > hatThreshold:
		return 1
	case v < -hatThreshold:
		return -1
	default:
		return 0
	}
}
