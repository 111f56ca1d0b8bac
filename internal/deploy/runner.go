package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/control"
	"github.com/san-kum/e3deploy/internal/display"
	"github.com/san-kum/e3deploy/internal/disturbance"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/input"
	"github.com/san-kum/e3deploy/internal/metrics"
	"github.com/san-kum/e3deploy/internal/mode"
	"github.com/san-kum/e3deploy/internal/policy"
	"github.com/san-kum/e3deploy/internal/sim"
	"github.com/san-kum/e3deploy/internal/spatial"
	"github.com/san-kum/e3deploy/internal/storage"
)

// ResetMessage is shown after a robot reset.
const ResetMessage = "Robot state reset"

// Deps are the collaborators a Runner drives. Sim, Pipeline and Source are
// required.
type Deps struct {
	Sim      dynamo.Simulator
	Pipeline *policy.Pipeline
	Source   input.Source
	// Output receives the status display. Nil discards it.
	Output io.Writer
	// Store persists recordings. Nil keeps them in memory only.
	Store  *storage.Store
	Pacer  sim.Pacer
	Joints []string
	Logger *zap.Logger
	// ConfigPath is recorded in run metadata.
	ConfigPath string
}

// Result summarizes a finished run.
type Result struct {
	Steps   int
	Time    float64
	Ticks   int
	RunID   string
	Metrics map[string]float64
	// Quit is true when the run ended on a quit event.
	Quit bool
}

// Runner owns the deployment loop.
type Runner struct {
	cfg      *config.Config
	deps     Deps
	log      *zap.Logger
	sim      dynamo.Simulator
	pd       *control.PD
	stepper  *sim.Stepper
	pipeline *policy.Pipeline
	observer *policy.Observer
	source   input.Source
	mapper   *input.Mapper
	dist     *disturbance.Applicator
	display  *display.Terminal
	metrics  []dynamo.Metric
	recorder *storage.Recorder
	state    *State
	initial  dynamo.Snapshot
	tracking int

	runID         string
	saved         bool
	displayFailed bool
	quit          bool
	cancel        context.CancelFunc
	closers       []func() error
}

func New(cfg *config.Config, deps Deps) (*Runner, error) {
	if deps.Sim == nil || deps.Pipeline == nil || deps.Source == nil {
		return nil, fmt.Errorf("%w: simulator, pipeline and input source are required", dynamo.ErrConfig)
	}
	if n := deps.Sim.NumJoints(); n != cfg.NumActions {
		return nil, fmt.Errorf("%w: scene has %d joints, num_actions is %d", dynamo.ErrConfig, n, cfg.NumActions)
	}
	if deps.Pipeline.ObsDim() != cfg.ObsDim() || deps.Pipeline.NumActions() != cfg.NumActions {
		return nil, fmt.Errorf("%w: pipeline expects %d observations and %d actions",
			dynamo.ErrShapeMismatch, deps.Pipeline.ObsDim(), deps.Pipeline.NumActions())
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("deploy")

	out := deps.Output
	if out == nil {
		out = io.Discard
	}

	dist, err := disturbance.New(deps.Sim, cfg.DisturbanceBody, cfg.DisturbanceForceScale)
	if err != nil {
		return nil, err
	}

	pd := control.NewPD(cfg.Kps, cfg.Kds, cfg.DefaultAngles, cfg.ActionScale)
	stepper := sim.New(deps.Sim, pd, cfg.ControlDecimation)
	if deps.Pacer != nil {
		stepper.SetPacer(deps.Pacer)
	}

	r := &Runner{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		sim:      deps.Sim,
		pd:       pd,
		stepper:  stepper,
		pipeline: deps.Pipeline,
		observer: policy.NewObserver(policy.ScalesFromConfig(cfg)),
		source:   deps.Source,
		mapper:   input.NewMapper(cfg.RunFilterAlpha),
		dist:     dist,
		display:  display.NewTerminal(out, display.DefaultFilterAlpha),
		metrics:  metrics.Standard(),
		recorder: storage.NewRecorder(cfg.RecordDuration),
		state:    NewState(cfg),
		initial:  deps.Sim.Snapshot(),
	}
	r.mapper.Reset(r.state.Command.Vx)
	r.tracking = r.trackingBody(cfg.TrackingBody)
	r.logGains()
	return r, nil
}

func (r *Runner) logGains() {
	for i, name := range r.deps.Joints {
		if i >= len(r.pd.Kp) {
			break
		}
		g := r.pd.GetParams(i)
		r.log.Debug("Joint gains",
			zap.String("joint", name),
			zap.Float64("kp", g.Kp),
			zap.Float64("kd", g.Kd),
			zap.Float64("default", g.Target))
	}
}

func (r *Runner) trackingBody(name string) int {
	for _, candidate := range []string{name, "pelvis_link", "base_link"} {
		if id, ok := r.sim.BodyID(candidate); ok {
			return id
		}
	}
	r.log.Warn("Tracking body not found, using body 0", zap.String("body", name))
	return 0
}

func (r *Runner) State() *State               { return r.state }
func (r *Runner) Stepper() *sim.Stepper       { return r.stepper }
func (r *Runner) Recorder() *storage.Recorder { return r.recorder }
func (r *Runner) Display() *display.Terminal  { return r.display }

// Metrics returns the current value of every run metric.
func (r *Runner) Metrics() map[string]float64 { return metrics.Collect(r.metrics) }

// simTime is simulated time since start, including time before any reset.
func (r *Runner) simTime() float64 {
	return float64(r.stepper.Steps()) * r.cfg.SimulationDt
}

// Run steps the simulation for the configured duration, until ctx is done or
// a quit event arrives. Cancellation is a normal stop; inference failures
// are returned as *dynamo.InferenceError.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	r.log.Info("Simulation starting",
		zap.Float64("duration", r.cfg.SimulationDuration),
		zap.Float64("control_hz", 1/r.cfg.ControlPeriod()),
		zap.String("input", r.source.Name()),
		zap.Bool("realtime", r.deps.Pacer != nil))

	err := r.stepper.Run(ctx, r.cfg.TotalSteps(), sim.Hooks{
		BeforeStep: r.beforeStep,
		Control:    r.control,
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	if err == nil && !r.saved && len(r.recorder.Samples()) > 0 {
		if serr := r.saveRecording(); serr != nil {
			r.log.Warn("Failed to save recording", zap.Error(serr))
		}
	}

	res := Result{
		Steps:   r.stepper.Steps(),
		Time:    r.simTime(),
		Ticks:   r.state.Ticks,
		RunID:   r.runID,
		Metrics: r.Metrics(),
		Quit:    r.quit,
	}
	if err != nil {
		r.log.Error("Simulation aborted", zap.Error(err), zap.Int("steps", res.Steps))
		return res, err
	}
	r.log.Info("Simulation finished",
		zap.Int("steps", res.Steps),
		zap.Float64("time", res.Time),
		zap.Any("metrics", res.Metrics))
	return res, nil
}

func (r *Runner) beforeStep(ctx context.Context) error {
	if r.state.ResetRequested {
		r.reset()
	}
	r.dist.Apply()
	return nil
}

// reset puts the robot and every piece of loop state back to the start.
func (r *Runner) reset() {
	st := r.state
	r.sim.Restore(r.initial)
	st.Command = r.cfg.InitialCommand()
	st.Action = make(dynamo.Action, r.cfg.NumActions)
	st.Phase.Reset()
	r.pd.Reset()
	r.pipeline.Reset()
	r.stepper.ResetCounter()
	r.dist.Clear()
	r.display.ResetFilter()
	r.mapper.Reset(st.Command.Vx)
	r.recorder.Restart()
	r.saved = false

	st.ResetRequested = false
	st.Message = ResetMessage
	r.display.Notify(ResetMessage)
	r.log.Info(ResetMessage, zap.Float64("time", r.simTime()))
}

func (r *Runner) control(ctx context.Context) error {
	st := r.state
	st.Ticks++

	f := r.source.Poll()
	r.handleEvents(f)
	if r.quit {
		r.cancel()
		return nil
	}
	r.applyCamera(f)

	st.Command = r.mapper.Apply(f, st.Command, st.Modes.Mode(), st.Modes.Limits())
	r.dist.Update(st.Modes.Mode() == mode.DisturbanceTest, f.Sticks.LeftX, f.Sticks.LeftY)

	quat := r.sim.BaseQuat()
	lin := spatial.WorldToBase(quat, r.sim.BaseLinearVelocity())
	ang := spatial.WorldToBase(quat, r.sim.BaseAngularVelocity())
	st.Actual = dynamo.Vec3{lin[0], lin[1], ang[2]}
	phase := st.Phase.Update(st.Actual, st.Command)

	q, dq := r.sim.JointPositions(), r.sim.JointVelocities()
	obs := r.observer.Build(policy.ObsInput{
		Quat:       quat,
		AngVel:     r.sim.BaseAngularVelocity(),
		Command:    st.Command,
		Q:          q,
		DQ:         dq,
		PrevAction: st.Action,
		Phase:      phase,
	})

	action, err := r.pipeline.Infer(obs)
	if err == nil {
		err = r.pd.SetAction(action)
	}
	if err != nil {
		return &dynamo.InferenceError{Step: r.stepper.Steps(), Time: r.simTime(), Wrapped: err}
	}
	st.Action = action

	if st.Modes.Tracking() {
		st.Eye = st.Camera.Eye(r.sim.BodyPosition(r.tracking))
	}

	if err := r.display.Render(st.Command, st.Actual, st.Status(r.dist.Magnitude())); err != nil && !r.displayFailed {
		r.log.Warn("Status display write failed", zap.Error(err))
		r.displayFailed = true
	}

	tick := dynamo.Tick{
		Time:        r.simTime(),
		Step:        r.stepper.Steps(),
		Command:     st.Command,
		Actual:      st.Actual,
		Torque:      r.stepper.Torque(),
		JointVel:    dq,
		Disturbance: r.dist.Force(),
	}
	for _, m := range r.metrics {
		m.Observe(tick)
	}
	r.recorder.OnTick(tick)
	if !r.saved && r.recorder.Enabled() && r.recorder.Full(tick.Time) {
		if err := r.saveRecording(); err != nil {
			r.log.Warn("Failed to save recording", zap.Error(err))
		}
	}
	return nil
}

func (r *Runner) handleEvents(f input.Frame) {
	st := r.state
	for _, e := range f.Events {
		switch e {
		case input.EventCycleMode:
			m := st.Modes.Cycle()
			if m != mode.DisturbanceTest {
				r.dist.Clear()
			}
			r.notify(fmt.Sprintf("Mode: %s", m))
		case input.EventToggleTracking:
			if st.Modes.ToggleTracking() {
				st.Camera.Track()
				r.notify("Camera tracking on")
			} else {
				r.notify("Camera tracking off")
			}
		case input.EventToggleForces:
			st.Flags.ShowForces = !st.Flags.ShowForces
		case input.EventToggleContacts:
			st.Flags.ShowContacts = !st.Flags.ShowContacts
		case input.EventToggleCameraControl:
			st.Flags.CameraControl = !st.Flags.CameraControl
			if st.Flags.CameraControl {
				r.notify("Camera control on")
			} else {
				r.notify("Camera control off")
			}
		case input.EventReset:
			st.ResetRequested = true
		case input.EventQuit:
			r.quit = true
			r.log.Info("Quit requested")
		}
	}
}

func (r *Runner) notify(msg string) {
	r.state.Message = msg
	r.display.Notify(msg)
	r.log.Debug(msg)
}

// applyCamera moves the camera. Gamepad D-pad input only acts while tracking;
// keyboard camera keys only while camera control is on.
func (r *Runner) applyCamera(f input.Frame) {
	if f.Camera.IsZero() {
		return
	}
	st := r.state
	switch f.Kind {
	case input.Absolute:
		if !st.Modes.Tracking() {
			return
		}
	case input.Incremental:
		if !st.Flags.CameraControl {
			return
		}
	}
	st.Camera.Rotate(f.Camera.Angle)
	st.Camera.Elevate(f.Camera.Elevation)
	st.Camera.Zoom(f.Camera.Distance)
}

func (r *Runner) saveRecording() error {
	samples := r.recorder.Samples()
	r.saved = true
	if r.deps.Store == nil {
		return nil
	}
	if err := r.deps.Store.Init(); err != nil {
		return err
	}
	id, err := r.deps.Store.Save(storage.RunMetadata{
		Config:     r.deps.ConfigPath,
		Policy:     r.cfg.PolicyPath,
		Scene:      r.cfg.ScenePath,
		Dt:         r.cfg.SimulationDt,
		Decimation: r.cfg.ControlDecimation,
		Duration:   r.cfg.RecordDuration,
		Joints:     r.deps.Joints,
		Metrics:    r.Metrics(),
	}, samples)
	if err != nil {
		return err
	}
	r.runID = id
	r.log.Info("Recording saved", zap.String("run_id", id), zap.Int("samples", len(samples)))
	return nil
}

// Close releases the input source, the pipeline and anything Setup opened.
func (r *Runner) Close() error {
	errs := []error{r.source.Close(), r.pipeline.Close()}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}
