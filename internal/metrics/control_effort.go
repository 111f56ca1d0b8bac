package metrics

import (
	"math"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

// ControlEffort is the mean absolute joint torque over all joints and ticks.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(t dynamo.Tick) {
	for _, val := range t.Torque {
		c.sum += math.Abs(val)
		c.samples++
	}
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
