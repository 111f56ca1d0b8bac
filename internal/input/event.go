package input

// Event is a discrete input that fires once on a released to pressed edge.
type Event int

const (
	EventNone Event = iota
	EventCycleMode
	EventToggleTracking
	EventToggleForces
	EventToggleContacts
	EventReset
	EventToggleCameraControl
	EventClearCommand
	EventQuit
)

var eventNames = map[Event]string{
	EventNone:                "none",
	EventCycleMode:           "cycle_mode",
	EventToggleTracking:      "toggle_tracking",
	EventToggleForces:        "toggle_forces",
	EventToggleContacts:      "toggle_contacts",
	EventReset:               "reset",
	EventToggleCameraControl: "toggle_camera_control",
	EventClearCommand:        "clear_command",
	EventQuit:                "quit",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// EdgeDetector remembers the previous state of each named button.
type EdgeDetector struct {
	prev map[string]bool
}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{prev: make(map[string]bool)}
}

// Pressed reports a released to pressed transition and records down.
func (d *EdgeDetector) Pressed(name string, down bool) bool {
	fired := down && !d.prev[name]
	d.prev[name] = down
	return fired
}
