// Package mode tracks the locomotion mode and the camera tracking flag.
package mode

import "github.com/san-kum/e3deploy/internal/config"

type Mode int

const (
	Walk Mode = iota
	Run
	DisturbanceTest
	numModes
)

func (m Mode) String() string {
	switch m {
	case Walk:
		return "Walk"
	case Run:
		return "Run"
	case DisturbanceTest:
		return "Disturbance Test"
	default:
		return "Unknown"
	}
}

// Manager holds the current mode. It has no terminal state.
type Manager struct {
	mode     Mode
	tracking bool
	limits   config.ModeLimitsConfig
}

func NewManager(limits config.ModeLimitsConfig) *Manager {
	return &Manager{mode: Walk, limits: limits}
}

func (m *Manager) Mode() Mode     { return m.mode }
func (m *Manager) Tracking() bool { return m.tracking }

// Cycle advances Walk -> Run -> DisturbanceTest -> Walk.
func (m *Manager) Cycle() Mode {
	m.mode = (m.mode + 1) % numModes
	return m.mode
}

// ToggleTracking flips camera tracking and returns the new value.
func (m *Manager) ToggleTracking() bool {
	m.tracking = !m.tracking
	return m.tracking
}

// Limits returns the command bounds of the current mode.
func (m *Manager) Limits() config.Limits {
	return m.LimitsFor(m.mode)
}

func (m *Manager) LimitsFor(md Mode) config.Limits {
	switch md {
	case Run:
		return m.limits.Run
	case DisturbanceTest:
		return m.limits.Disturbance
	default:
		return m.limits.Walk
	}
}
