// Package calibrate is an interactive terminal wizard that measures a
// gamepad's axis centers and ranges, names the sticks and records button
// ids, then writes a calibration profile.
package calibrate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/0xcafed00d/joystick"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/e3deploy/internal/input"
)

const (
	axisScale = 32767.0

	// MinDeflection is how far an axis must move from center to be picked
	// as the stick being named.
	MinDeflection = 0.5

	DefaultDeadzone = 0.1
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// AxisNames are the sticks the wizard asks for, in order.
var AxisNames = []string{"left_x", "left_y", "right_x", "right_y"}

// ButtonNames are the buttons the wizard asks for, in order.
var ButtonNames = []string{"A", "B", "X", "Y", "LB"}

type stage int

const (
	stageCenter stage = iota
	stageRange
	stageAxes
	stageButtons
	stageDone
)

type tickMsg time.Time

type savedMsg struct{ err error }

// Model is the bubbletea model of the wizard.
type Model struct {
	js          joystick.Joystick
	gamepadType string
	path        string
	interval    time.Duration

	stage   stage
	axes    []float64
	buttons uint32
	center  []float64
	min     []float64
	max     []float64
	samples int

	axisIndex   int
	axisIDs     map[string]int
	buttonIndex int
	buttonIDs   map[string]int
	prevButtons uint32

	result *input.Calibration
	err    error
}

// New returns a wizard that polls js every interval and saves to path.
func New(js joystick.Joystick, gamepadType, path string, interval time.Duration) Model {
	n := js.AxisCount()
	return Model{
		js:          js,
		gamepadType: gamepadType,
		path:        path,
		interval:    interval,
		axes:        make([]float64, n),
		center:      make([]float64, n),
		min:         make([]float64, n),
		max:         make([]float64, n),
		axisIDs:     make(map[string]int),
		buttonIDs:   make(map[string]int),
	}
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Result is the saved profile, nil until the wizard completes.
func (m Model) Result() *input.Calibration { return m.result }

func (m Model) Err() error { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if m.stage == stageDone {
			return m, nil
		}
		if err := m.sample(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		m = m.observe()
		if m.stage == stageDone {
			cmd := m.save()
			return m, cmd
		}
		return m, m.tick()
	case savedMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "enter", " ":
		m = m.advance()
		if m.stage == stageDone {
			cmd := m.save()
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) sample() error {
	st, err := m.js.Read()
	if err != nil {
		return fmt.Errorf("read joystick: %w", err)
	}
	for i := range m.axes {
		if i < len(st.AxisData) {
			m.axes[i] = float64(st.AxisData[i]) / axisScale
		}
	}
	m.buttons = st.Buttons
	return nil
}

// observe folds the latest reading into the current stage.
func (m Model) observe() Model {
	switch m.stage {
	case stageCenter:
		m.samples++
		for i, v := range m.axes {
			m.center[i] += (v - m.center[i]) / float64(m.samples)
		}
	case stageRange:
		for i, v := range m.axes {
			m.min[i] = math.Min(m.min[i], v)
			m.max[i] = math.Max(m.max[i], v)
		}
	case stageButtons:
		pressed := m.buttons &^ m.prevButtons
		m.prevButtons = m.buttons
		if id, ok := lowestBit(pressed); ok {
			m.buttonIDs[ButtonNames[m.buttonIndex]] = id
			m.buttonIndex++
			if m.buttonIndex == len(ButtonNames) {
				m.stage = stageDone
			}
		}
	}
	return m
}

// advance confirms the current step.
func (m Model) advance() Model {
	switch m.stage {
	case stageCenter:
		copy(m.min, m.center)
		copy(m.max, m.center)
		m.stage = stageRange
	case stageRange:
		m.stage = stageAxes
	case stageAxes:
		id, ok := m.deflected()
		if !ok {
			return m
		}
		m.axisIDs[AxisNames[m.axisIndex]] = id
		m.axisIndex++
		if m.axisIndex == len(AxisNames) {
			m.prevButtons = m.buttons
			m.stage = stageButtons
		}
	}
	return m
}

// deflected returns the unassigned axis farthest from its center.
func (m Model) deflected() (int, bool) {
	taken := make(map[int]bool, len(m.axisIDs))
	for _, id := range m.axisIDs {
		taken[id] = true
	}
	best, bestDev := -1, MinDeflection
	for i, v := range m.axes {
		if taken[i] {
			continue
		}
		if dev := math.Abs(v - m.center[i]); dev >= bestDev {
			best, bestDev = i, dev
		}
	}
	return best, best >= 0
}

func lowestBit(mask uint32) (int, bool) {
	for i := 0; i < 32; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i, true
		}
	}
	return 0, false
}

// Profile builds the calibration from the measurements so far.
func (m Model) Profile() *input.Calibration {
	c := &input.Calibration{
		JoystickName:    m.js.Name(),
		CalibrationDate: time.Now().Format(time.RFC3339),
		GamepadType:     m.gamepadType,
		Axes:            make(map[string]input.AxisCalibration),
		Buttons:         make(map[string]input.ButtonCalibration),
	}
	names := make(map[int]string, len(m.axisIDs))
	for name, id := range m.axisIDs {
		names[id] = name
	}
	for i := range m.center {
		name, ok := names[i]
		if !ok {
			name = fmt.Sprintf("axis_%d", i)
		}
		lo, hi := m.min[i], m.max[i]
		// A side the operator never moved keeps the nominal bound.
		if lo >= m.center[i] {
			lo = -1
		}
		if hi <= m.center[i] {
			hi = 1
		}
		c.Axes[fmt.Sprint(i)] = input.AxisCalibration{
			Name:     name,
			Center:   m.center[i],
			Min:      lo,
			Max:      hi,
			Deadzone: DefaultDeadzone,
		}
	}
	for name, id := range m.buttonIDs {
		c.Buttons[name] = input.ButtonCalibration{ButtonID: id}
	}
	return c
}

func (m *Model) save() tea.Cmd {
	m.result = m.Profile()
	cal, path := m.result, m.path
	return func() tea.Msg {
		return savedMsg{err: cal.Save(path)}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(cyan.Render("gamepad calibration") + " " + dim.Render(m.js.Name()) + "\n\n")

	switch m.stage {
	case stageCenter:
		b.WriteString(white.Render("Release all sticks and press enter.") + "\n")
		b.WriteString(dim.Render(fmt.Sprintf("%d samples", m.samples)) + "\n")
	case stageRange:
		b.WriteString(white.Render("Rotate every stick through its full range, then press enter.") + "\n")
	case stageAxes:
		b.WriteString(white.Render(fmt.Sprintf("Hold the %s stick at full deflection and press enter.", AxisNames[m.axisIndex])) + "\n")
		if id, ok := m.deflected(); ok {
			b.WriteString(green.Render(fmt.Sprintf("axis %d", id)) + "\n")
		} else {
			b.WriteString(dim.Render("no axis deflected") + "\n")
		}
	case stageButtons:
		b.WriteString(white.Render(fmt.Sprintf("Press %s.", ButtonNames[m.buttonIndex])) + "\n")
	case stageDone:
		if m.err != nil {
			b.WriteString(red.Render("save failed: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(green.Render("saved "+m.path) + "\n")
		}
	}

	b.WriteString("\n")
	for i, v := range m.axes {
		fmt.Fprintf(&b, "%s %s [%6.3f, %6.3f] c=%6.3f\n",
			dim.Render(fmt.Sprintf("axis %d", i)),
			yellow.Render(fmt.Sprintf("%6.3f", v)),
			m.min[i], m.max[i], m.center[i])
	}
	b.WriteString("\n" + dim.Render("enter confirm · q quit") + "\n")
	return b.String()
}

// Run opens device index and runs the wizard until it saves or the user quits.
func Run(index int, gamepadType, path string) (*input.Calibration, error) {
	js, err := joystick.Open(index)
	if err != nil {
		return nil, fmt.Errorf("open joystick %d: %w", index, err)
	}
	defer js.Close()

	final, err := tea.NewProgram(New(js, gamepadType, path, 20*time.Millisecond)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(Model)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
