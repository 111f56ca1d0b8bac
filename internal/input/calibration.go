package input

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const CalibrationDir = "gamepad_configs"

type AxisCalibration struct {
	Name     string  `json:"name"`
	Center   float64 `json:"center"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Deadzone float64 `json:"deadzone"`
	Invert   bool    `json:"invert"`
}

type ButtonCalibration struct {
	ButtonID int `json:"button_id"`
}

// Calibration is a per-model gamepad profile. Axes are keyed by device axis index.
type Calibration struct {
	JoystickName    string                       `json:"joystick_name"`
	CalibrationDate string                       `json:"calibration_date"`
	GamepadType     string                       `json:"gamepad_type"`
	Axes            map[string]AxisCalibration   `json:"axes"`
	Buttons         map[string]ButtonCalibration `json:"buttons"`
}

// DefaultCalibrationPath is root/gamepad_configs/gamepad_calibration_<type>.json.
func DefaultCalibrationPath(root, gamepadType string) string {
	return filepath.Join(root, CalibrationDir, fmt.Sprintf("gamepad_calibration_%s.json", gamepadType))
}

func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	return &c, nil
}

func (c *Calibration) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Axis returns the calibration of a device axis. Uncalibrated axes span [-1, 1].
func (c *Calibration) Axis(index int) AxisCalibration {
	if c != nil {
		if a, ok := c.Axes[strconv.Itoa(index)]; ok {
			return a
		}
	}
	return AxisCalibration{Min: -1, Max: 1}
}

// Button returns the calibrated id of a named button, or fallback.
func (c *Calibration) Button(name string, fallback ...int) []int {
	if c != nil {
		if b, ok := c.Buttons[name]; ok {
			return []int{b.ButtonID}
		}
	}
	return fallback
}

// functionKeywords match axis names to mapping slots: left X, left Y, right X, right Y.
var functionKeywords = [4][]string{
	{"left_x", "angular"},
	{"left_y", "disturbance"},
	{"right_x", "lateral"},
	{"right_y", "forward"},
}

// AxisMapping derives a custom mapping from axis names, falling back to the
// four lowest axis ids when names do not cover every slot.
func (c *Calibration) AxisMapping() ([]int, bool) {
	if c == nil || len(c.Axes) < 4 {
		return nil, false
	}
	mapping := []int{-1, -1, -1, -1}
	ids := make([]int, 0, len(c.Axes))
	for key, a := range c.Axes {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		name := strings.ToLower(a.Name)
		for slot, words := range functionKeywords {
			for _, w := range words {
				if strings.Contains(name, w) {
					mapping[slot] = id
				}
			}
		}
	}
	for _, id := range mapping {
		if id < 0 {
			if len(ids) < 4 {
				return nil, false
			}
			sort.Ints(ids)
			return ids[:4], true
		}
	}
	return mapping, true
}

var (
	logitechMapping = []int{0, 1, 2, 3}
	betopMapping    = []int{0, 1, 3, 4}
)

// ResolveAxisMapping picks the axis order for a gamepad type. Custom types use
// the configured mapping, then the calibration, then the logitech layout.
func ResolveAxisMapping(gamepadType string, custom []int, cal *Calibration) [4]int {
	var m []int
	switch gamepadType {
	case "betop":
		m = betopMapping
	case "custom":
		if len(custom) == 4 {
			m = custom
		} else if derived, ok := cal.AxisMapping(); ok {
			m = derived
		} else {
			m = logitechMapping
		}
	default:
		m = logitechMapping
	}
	return [4]int{m[0], m[1], m[2], m[3]}
}
