package calibrate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/0xcafed00d/joystick"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/e3deploy/internal/input"
)

type fakeJoystick struct {
	state joystick.State
}

func (f *fakeJoystick) AxisCount() int   { return 4 }
func (f *fakeJoystick) ButtonCount() int { return 8 }
func (f *fakeJoystick) Name() string     { return "fake pad" }
func (f *fakeJoystick) Close()           {}

func (f *fakeJoystick) Read() (joystick.State, error) { return f.state, nil }

func (f *fakeJoystick) set(axes []int, buttons uint32) {
	f.state = joystick.State{AxisData: axes, Buttons: buttons}
}

type driver struct {
	t *testing.T
	m Model
}

func (d *driver) tick() tea.Cmd {
	next, cmd := d.m.Update(tickMsg(time.Now()))
	d.m = next.(Model)
	return cmd
}

func (d *driver) enter() tea.Cmd {
	next, cmd := d.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	d.m = next.(Model)
	return cmd
}

func TestWizardFullRun(t *testing.T) {
	js := &fakeJoystick{}
	path := filepath.Join(t.TempDir(), "gamepad_configs", "gamepad_calibration_custom.json")
	d := &driver{t: t, m: New(js, "custom", path, time.Millisecond)}

	// Resting sticks, slightly off zero on axis 0.
	js.set([]int{3277, 0, 0, 0}, 0)
	d.tick()
	d.tick()
	d.enter()
	require.Equal(t, stageRange, d.m.stage)
	assert.InDelta(t, 0.1, d.m.center[0], 1e-3)

	for _, axes := range [][]int{
		{32767, 32767, 32767, 32767},
		{-32767, -32767, -32767, -32767},
	} {
		js.set(axes, 0)
		d.tick()
	}
	d.enter()
	require.Equal(t, stageAxes, d.m.stage)
	assert.InDelta(t, -1.0, d.m.min[2], 1e-9)
	assert.InDelta(t, 1.0, d.m.max[2], 1e-9)

	// Name the sticks in a shuffled physical order.
	for _, axis := range []int{2, 3, 0, 1} {
		axes := []int{0, 0, 0, 0}
		axes[axis] = 32767
		js.set(axes, 0)
		d.tick()
		d.enter()
	}
	require.Equal(t, stageButtons, d.m.stage)

	var last tea.Cmd
	for i := range ButtonNames {
		js.set([]int{0, 0, 0, 0}, 1<<uint(i+1))
		last = d.tick()
		js.set([]int{0, 0, 0, 0}, 0)
		if i < len(ButtonNames)-1 {
			d.tick()
		}
	}
	require.Equal(t, stageDone, d.m.stage)
	require.NotNil(t, last)

	msg := last()
	saved, ok := msg.(savedMsg)
	require.True(t, ok)
	require.NoError(t, saved.err)

	cal, err := input.LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, "fake pad", cal.JoystickName)
	assert.Equal(t, "left_x", cal.Axes["2"].Name)
	assert.Equal(t, "right_y", cal.Axes["1"].Name)
	assert.Equal(t, 1, cal.Buttons["A"].ButtonID)
	assert.Equal(t, 5, cal.Buttons["LB"].ButtonID)

	mapping, ok := cal.AxisMapping()
	require.True(t, ok)
	assert.Equal(t, []int{2, 3, 0, 1}, mapping)
}

func TestWizardIgnoresEnterWithoutDeflection(t *testing.T) {
	js := &fakeJoystick{}
	js.set([]int{0, 0, 0, 0}, 0)
	d := &driver{t: t, m: New(js, "custom", filepath.Join(t.TempDir(), "c.json"), time.Millisecond)}

	d.tick()
	d.enter()
	d.enter()
	require.Equal(t, stageAxes, d.m.stage)

	js.set([]int{0, 10000, 0, 0}, 0)
	d.tick()
	d.enter()
	assert.Equal(t, 0, d.m.axisIndex)
	assert.Empty(t, d.m.axisIDs)
}

func TestProfileKeepsNominalBoundsForUnmovedAxes(t *testing.T) {
	js := &fakeJoystick{}
	d := &driver{t: t, m: New(js, "custom", filepath.Join(t.TempDir(), "c.json"), time.Millisecond)}

	js.set([]int{0, 3277, 0, 0}, 0)
	d.tick()
	d.enter()
	// Only axis 0 moves, and only upwards.
	js.set([]int{16384, 3277, 0, 0}, 0)
	d.tick()
	d.enter()
	require.Equal(t, stageAxes, d.m.stage)

	cal := d.m.Profile()
	assert.InDelta(t, 0.5, cal.Axes["0"].Max, 1e-3)
	assert.Equal(t, -1.0, cal.Axes["0"].Min)
	for _, key := range []string{"1", "2", "3"} {
		assert.Equal(t, -1.0, cal.Axes[key].Min, "axis %s", key)
		assert.Equal(t, 1.0, cal.Axes[key].Max, "axis %s", key)
	}

	v := input.Normalize(-0.45, cal.Axis(1), 0.1)
	assert.InDelta(t, -0.55/1.1, v, 1e-3)
}

func TestWizardQuit(t *testing.T) {
	js := &fakeJoystick{}
	m := New(js, "betop", "unused.json", time.Millisecond)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLowestBit(t *testing.T) {
	id, ok := lowestBit(0b10100)
	assert.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = lowestBit(0)
	assert.False(t, ok)
}
