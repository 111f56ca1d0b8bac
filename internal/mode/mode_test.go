package mode

import (
	"testing"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestCycle(t *testing.T) {
	m := NewManager(config.DefaultConfig().ModeLimits)
	assert.Equal(t, Walk, m.Mode())

	want := []Mode{Run, DisturbanceTest, Walk, Run, DisturbanceTest, Walk}
	for i, w := range want {
		assert.Equal(t, w, m.Cycle(), "cycle %d", i)
	}
}

func TestTrackingIndependentOfMode(t *testing.T) {
	m := NewManager(config.DefaultConfig().ModeLimits)

	assert.True(t, m.ToggleTracking())
	m.Cycle()
	assert.True(t, m.Tracking())
	assert.Equal(t, Run, m.Mode())

	assert.False(t, m.ToggleTracking())
	assert.Equal(t, Run, m.Mode())
}

func TestLimits(t *testing.T) {
	limits := config.DefaultConfig().ModeLimits
	m := NewManager(limits)

	assert.Equal(t, limits.Walk, m.Limits())
	m.Cycle()
	assert.Equal(t, limits.Run, m.Limits())
	m.Cycle()
	assert.Equal(t, limits.Disturbance, m.Limits())
	assert.Zero(t, m.Limits().MaxAngular)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "Walk", Walk.String())
	assert.Equal(t, "Run", Run.String())
	assert.Equal(t, "Disturbance Test", DisturbanceTest.String())
	assert.Equal(t, "Unknown", Mode(7).String())
}
