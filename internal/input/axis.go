package input

import "math"

// Normalize maps a raw axis reading to [-1, 1] using the calibration center
// and the half-range on the reading's side of it. Readings inside the
// deadzone yield exactly 0. A positive calibration deadzone overrides the
// given default. A missing range (min >= max, as in center-only profiles)
// or an empty side falls back to the nominal [-1, 1] bound.
func Normalize(raw float64, c AxisCalibration, deadzone float64) float64 {
	lo, hi := c.Min, c.Max
	if lo >= hi {
		lo, hi = -1, 1
	}
	v := raw - c.Center
	half, nominal := hi-c.Center, 1-c.Center
	if v < 0 {
		half, nominal = c.Center-lo, c.Center+1
	}
	if half <= 0 {
		half = nominal
	}
	if half <= 0 {
		return 0
	}
	v /= half
	if c.Invert {
		v = -v
	}
	v = math.Max(-1, math.Min(1, v))

	if c.Deadzone > 0 {
		deadzone = c.Deadzone
	}
	if math.Abs(v) < deadzone {
		return 0
	}
	return v
}
