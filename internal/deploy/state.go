package deploy

import (
	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/display"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/mode"
	"github.com/san-kum/e3deploy/internal/policy"
	"github.com/san-kum/e3deploy/internal/viewer"
)

// State is everything the loop mutates between control ticks. It is owned
// by the stepping goroutine.
type State struct {
	Command dynamo.Command
	Modes   *mode.Manager
	Camera  viewer.Camera
	Flags   viewer.Flags
	Phase   *policy.Phase
	// Action is the latched policy output, also fed back as the previous action.
	Action dynamo.Action
	// Actual is the measured base-frame (vx, vy, wz) at the last tick.
	Actual dynamo.Vec3
	// Eye is the camera position while tracking.
	Eye dynamo.Vec3

	ResetRequested bool
	// Message is the last status message shown.
	Message string
	Ticks   int
}

func NewState(cfg *config.Config) *State {
	return &State{
		Command: cfg.InitialCommand(),
		Modes:   mode.NewManager(cfg.ModeLimits),
		Camera:  viewer.NewCamera(),
		Phase:   policy.NewPhase(cfg.ControlPeriod()),
		Action:  make(dynamo.Action, cfg.NumActions),
	}
}

// Status is the display view of the state.
func (s *State) Status(disturbance float64) display.Status {
	return display.Status{
		Mode:           s.Modes.Mode(),
		Tracking:       s.Modes.Tracking(),
		ShowForces:     s.Flags.ShowForces,
		ShowContacts:   s.Flags.ShowContacts,
		CameraControl:  s.Flags.CameraControl,
		ResetRequested: s.ResetRequested,
		Camera:         s.Camera,
		Disturbance:    disturbance,
	}
}
