package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt               = 0.002
	DefaultDuration         = 60.0
	DefaultDecimation       = 10
	DefaultDeadzone         = 0.1
	DefaultCmdStep          = 0.1
	DefaultCameraAngleStep  = 0.05
	DefaultCameraDistStep   = 0.1
	DefaultCameraElevStep   = 0.05
	DefaultRunFilterAlpha   = 0.02
	DefaultDisturbanceForce = 100.0
	DefaultRecordDuration   = 5.0

	// ConfigsDir is where bare config file names are looked up.
	ConfigsDir = "configs"
)

type Config struct {
	PolicyPath         string  `yaml:"policy_path"`
	ScenePath          string  `yaml:"xml_path"`
	SimulationDuration float64 `yaml:"simulation_duration"`
	SimulationDt       float64 `yaml:"simulation_dt"`
	ControlDecimation  int     `yaml:"control_decimation"`

	Kps           []float64 `yaml:"kps"`
	Kds           []float64 `yaml:"kds"`
	DefaultAngles []float64 `yaml:"default_angles"`

	AngVelScale       float64   `yaml:"ang_vel_scale"`
	DofPosScale       float64   `yaml:"dof_pos_scale"`
	DofVelScale       float64   `yaml:"dof_vel_scale"`
	ActionScale       float64   `yaml:"action_scale"`
	CmdScale          []float64 `yaml:"cmd_scale"`
	NumActions        int       `yaml:"num_actions"`
	NumObs            int       `yaml:"num_obs"`
	IncludePhaseInObs bool      `yaml:"include_phase_in_obs"`
	CmdInit           []float64 `yaml:"cmd_init"`

	GamepadEnabled  bool    `yaml:"gamepad_enabled"`
	KeyboardEnabled bool    `yaml:"keyboard_enabled"`
	GamepadType     string  `yaml:"gamepad_type"`
	GamepadIndex    int     `yaml:"gamepad_index"`
	AxisMapping     []int   `yaml:"axis_mapping"`
	HatAxes         []int   `yaml:"hat_axes"`
	CalibrationFile string  `yaml:"gamepad_calibration_file"`
	Deadzone        float64 `yaml:"deadzone"`

	CmdStep             float64 `yaml:"cmd_step"`
	CameraAngleStep     float64 `yaml:"camera_angle_step"`
	CameraDistanceStep  float64 `yaml:"camera_distance_step"`
	CameraElevationStep float64 `yaml:"camera_elevation_step"`

	ModeLimits            ModeLimitsConfig `yaml:"mode_limits"`
	RunFilterAlpha        float64          `yaml:"run_filter_alpha"`
	DisturbanceForceScale float64          `yaml:"disturbance_force_scale"`
	DisturbanceBody       string           `yaml:"disturbance_body"`
	TrackingBody          string           `yaml:"tracking_body"`

	Realtime        bool    `yaml:"realtime"`
	RecordDuration  float64 `yaml:"record_duration"`
	OnnxLibraryPath string  `yaml:"onnx_library_path"`

	Log LogConfig `yaml:"log"`

	// Root is the directory relative paths resolve against. Set by Load.
	Root string `yaml:"-"`
}

// Limits bounds each command component for one locomotion mode.
type Limits struct {
	MaxForward  float64 `yaml:"max_forward"`
	MaxBackward float64 `yaml:"max_backward"`
	MaxLateral  float64 `yaml:"max_lateral"`
	MaxAngular  float64 `yaml:"max_angular"`
}

type ModeLimitsConfig struct {
	Walk        Limits `yaml:"walk"`
	Run         Limits `yaml:"run"`
	Disturbance Limits `yaml:"disturbance"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

func DefaultConfig() *Config {
	return &Config{
		SimulationDuration:    DefaultDuration,
		SimulationDt:          DefaultDt,
		ControlDecimation:     DefaultDecimation,
		AngVelScale:           1.0,
		DofPosScale:           1.0,
		DofVelScale:           1.0,
		ActionScale:           1.0,
		CmdScale:              []float64{1, 1, 1},
		CmdInit:               []float64{0, 0, 0},
		GamepadType:           "logitech",
		HatAxes:               []int{6, 7},
		Deadzone:              DefaultDeadzone,
		CmdStep:               DefaultCmdStep,
		CameraAngleStep:       DefaultCameraAngleStep,
		CameraDistanceStep:    DefaultCameraDistStep,
		CameraElevationStep:   DefaultCameraElevStep,
		RunFilterAlpha:        DefaultRunFilterAlpha,
		DisturbanceForceScale: DefaultDisturbanceForce,
		DisturbanceBody:       "torso_link",
		TrackingBody:          "pelvis_link",
		ModeLimits: ModeLimitsConfig{
			Walk:        Limits{MaxForward: 1.0, MaxBackward: 0.5, MaxLateral: 0.5, MaxAngular: 1.0},
			Run:         Limits{MaxForward: 3.0, MaxBackward: 0.5, MaxLateral: 0.5, MaxAngular: 1.0},
			Disturbance: Limits{MaxForward: 0.5, MaxBackward: 0.3, MaxLateral: 0.3, MaxAngular: 0.0},
		},
		Log: LogConfig{Level: "info", Format: "console", MaxSize: 10, MaxBackups: 3},
	}
}

// ResolvePath maps a command-line argument to a config file path. Bare file
// names are looked up under projectRoot/configs; anything containing a path
// separator is used as given (relative to the working directory).
func ResolvePath(arg, projectRoot string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	if strings.ContainsRune(arg, filepath.Separator) || strings.Contains(arg, "/") {
		if strings.HasPrefix(filepath.ToSlash(arg), ConfigsDir+"/") {
			return filepath.Join(projectRoot, arg)
		}
		return arg
	}
	return filepath.Join(projectRoot, ConfigsDir, arg)
}

// Load reads and validates a config file. Relative asset paths in the file
// resolve against the parent of the directory holding it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfig, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", dynamo.ErrConfig, path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfig, err)
	}
	cfg.Root = filepath.Dir(filepath.Dir(abs))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes cfg as YAML, defaults included.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate rejects missing or conflicting fields before the loop starts.
func (c *Config) Validate() error {
	if c.GamepadEnabled == c.KeyboardEnabled {
		return fmt.Errorf("%w: got gamepad_enabled=%t, keyboard_enabled=%t",
			dynamo.ErrInputConflict, c.GamepadEnabled, c.KeyboardEnabled)
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("%w: policy_path is required", dynamo.ErrConfig)
	}
	if c.ScenePath == "" {
		return fmt.Errorf("%w: xml_path is required", dynamo.ErrConfig)
	}
	if c.SimulationDt <= 0 {
		return fmt.Errorf("%w: simulation_dt must be positive, got %f", dynamo.ErrConfig, c.SimulationDt)
	}
	if c.SimulationDuration <= 0 {
		return fmt.Errorf("%w: simulation_duration must be positive, got %f", dynamo.ErrConfig, c.SimulationDuration)
	}
	if c.ControlDecimation < 1 {
		return fmt.Errorf("%w: control_decimation must be >= 1, got %d", dynamo.ErrConfig, c.ControlDecimation)
	}
	if c.NumActions <= 0 {
		return fmt.Errorf("%w: num_actions must be positive", dynamo.ErrConfig)
	}
	for name, v := range map[string][]float64{"kps": c.Kps, "kds": c.Kds, "default_angles": c.DefaultAngles} {
		if len(v) != c.NumActions {
			return fmt.Errorf("%w: %s has %d entries, num_actions is %d", dynamo.ErrConfig, name, len(v), c.NumActions)
		}
	}
	if want := 9 + 3*c.NumActions; c.NumObs != want {
		return fmt.Errorf("%w: num_obs must be 9 + 3*num_actions = %d, got %d", dynamo.ErrConfig, want, c.NumObs)
	}
	if len(c.CmdScale) != 3 {
		return fmt.Errorf("%w: cmd_scale needs 3 entries", dynamo.ErrConfig)
	}
	if len(c.CmdInit) != 3 {
		return fmt.Errorf("%w: cmd_init needs 3 entries", dynamo.ErrConfig)
	}
	if c.Deadzone < 0 || c.Deadzone >= 1 {
		return fmt.Errorf("%w: deadzone must be in [0, 1)", dynamo.ErrConfig)
	}
	if c.RunFilterAlpha <= 0 || c.RunFilterAlpha > 1 {
		return fmt.Errorf("%w: run_filter_alpha must be in (0, 1]", dynamo.ErrConfig)
	}
	switch c.GamepadType {
	case "logitech", "betop":
	case "custom":
		if len(c.AxisMapping) != 0 && len(c.AxisMapping) != 4 {
			return fmt.Errorf("%w: axis_mapping needs 4 entries", dynamo.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown gamepad_type %q", dynamo.ErrConfig, c.GamepadType)
	}
	return nil
}

// ObsDim is the policy input width including the optional phase terms.
func (c *Config) ObsDim() int {
	if c.IncludePhaseInObs {
		return c.NumObs + 2
	}
	return c.NumObs
}

// ControlPeriod is the simulated time between two policy evaluations.
func (c *Config) ControlPeriod() float64 {
	return c.SimulationDt * float64(c.ControlDecimation)
}

// TotalSteps is the number of physics steps in the configured duration.
func (c *Config) TotalSteps() int {
	return int(c.SimulationDuration/c.SimulationDt + 0.5)
}

func (c *Config) InitialCommand() dynamo.Command {
	return dynamo.Command{Vx: c.CmdInit[0], Vy: c.CmdInit[1], Wz: c.CmdInit[2]}
}

// Abs resolves a config-relative path against Root.
func (c *Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
