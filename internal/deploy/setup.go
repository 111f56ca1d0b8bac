package deploy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/input"
	"github.com/san-kum/e3deploy/internal/physics"
	"github.com/san-kum/e3deploy/internal/policy"
	"github.com/san-kum/e3deploy/internal/storage"
)

// Options control how Setup builds the concrete collaborators.
type Options struct {
	ConfigPath string
	// DataDir holds recorded runs. Empty disables persistence.
	DataDir string
	Output  io.Writer
	Logger  *zap.Logger
}

// Setup loads the scene and policy named by cfg, opens the configured input
// device and returns a ready Runner. Scene, model and runtime failures are
// fatal; a missing input device is logged and replaced by a source that
// holds the initial command.
func Setup(cfg *config.Config, opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	scenePath := cfg.Abs(cfg.ScenePath)
	body, err := physics.Load(scenePath, cfg.SimulationDt)
	if err != nil {
		return nil, err
	}
	log.Info("Scene loaded",
		zap.String("path", scenePath),
		zap.Int("joints", body.NumJoints()),
		zap.Float64("dt", cfg.SimulationDt))

	if err := policy.InitRuntime(cfg.Abs(cfg.OnnxLibraryPath)); err != nil {
		return nil, err
	}
	policyDir := cfg.Abs(cfg.PolicyPath)
	pipe, err := policy.Load(policyDir, cfg.ObsDim(), cfg.NumActions)
	if err != nil {
		return nil, errors.Join(err, policy.ShutdownRuntime())
	}
	log.Info("Policy loaded", zap.String("path", policyDir), zap.Int("obs_dim", cfg.ObsDim()))

	deps := Deps{
		Sim:        body,
		Pipeline:   pipe,
		Source:     OpenSource(cfg, log),
		Output:     opts.Output,
		Joints:     jointNames(body.Scene()),
		Logger:     log,
		ConfigPath: opts.ConfigPath,
	}
	if deps.Output == nil {
		deps.Output = os.Stdout
	}
	if opts.DataDir != "" && cfg.RecordDuration > 0 {
		deps.Store = storage.New(opts.DataDir)
	}
	if cfg.Realtime {
		deps.Pacer = rate.NewLimiter(rate.Every(time.Duration(cfg.SimulationDt*float64(time.Second))), 1)
	}

	r, err := New(cfg, deps)
	if err != nil {
		return nil, errors.Join(err, deps.Source.Close(), pipe.Close(), policy.ShutdownRuntime())
	}
	r.closers = append(r.closers, policy.ShutdownRuntime)
	return r, nil
}

func jointNames(s *physics.Scene) []string {
	names := make([]string, len(s.Joints))
	for i, j := range s.Joints {
		names[i] = j.Name
	}
	return names
}

// OpenSource opens the keyboard or gamepad selected in cfg. Device errors are
// logged once and yield input.Null.
func OpenSource(cfg *config.Config, log *zap.Logger) input.Source {
	if cfg.KeyboardEnabled {
		kb, err := input.OpenKeyboard(input.KeyboardOptions{
			CmdStep:       cfg.CmdStep,
			AngleStep:     cfg.CameraAngleStep,
			ElevationStep: cfg.CameraElevationStep,
			DistStep:      cfg.CameraDistanceStep,
			Logger:        log,
		})
		if err != nil {
			log.Warn("Keyboard unavailable, holding initial command", zap.Error(err))
			return input.Null{}
		}
		log.Info("Keyboard control enabled",
			zap.String("keys", "w/s vx, j/l vy, a/d wz, c clear, b reset, m mode, t track, f forces, k contacts, r camera, q quit"))
		return kb
	}

	cal := loadCalibration(cfg, log)
	pad, err := input.OpenGamepad(input.GamepadOptions{
		Index:       cfg.GamepadIndex,
		Type:        cfg.GamepadType,
		AxisMapping: cfg.AxisMapping,
		HatAxes:     cfg.HatAxes,
		Deadzone:    cfg.Deadzone,
		Calibration: cal,
		AngleStep:   cfg.CameraAngleStep,
		DistStep:    cfg.CameraDistanceStep,
		Logger:      log,
	})
	if err != nil {
		log.Warn("No gamepad found, holding initial command", zap.Error(err))
		return input.Null{}
	}
	return pad
}

func loadCalibration(cfg *config.Config, log *zap.Logger) *input.Calibration {
	path := cfg.Abs(cfg.CalibrationFile)
	if path == "" {
		path = input.DefaultCalibrationPath(cfg.Root, cfg.GamepadType)
	}
	cal, err := input.LoadCalibration(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("No gamepad calibration, using raw axes", zap.String("path", path))
		} else {
			log.Warn("Ignoring gamepad calibration", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	log.Info("Gamepad calibration loaded",
		zap.String("path", path),
		zap.String("joystick", cal.JoystickName),
		zap.String("date", cal.CalibrationDate))
	return cal
}

// Describe is a one-line summary of the loop timing.
func Describe(cfg *config.Config) string {
	return fmt.Sprintf("dt=%gs decimation=%d control=%.1fHz duration=%gs",
		cfg.SimulationDt, cfg.ControlDecimation, 1/cfg.ControlPeriod(), cfg.SimulationDuration)
}
