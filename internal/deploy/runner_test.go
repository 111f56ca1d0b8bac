package deploy_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/deploy"
	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/input"
	"github.com/san-kum/e3deploy/internal/mode"
	"github.com/san-kum/e3deploy/internal/physics"
	"github.com/san-kum/e3deploy/internal/policy"
	"github.com/san-kum/e3deploy/internal/storage"
	"github.com/san-kum/e3deploy/internal/viewer"
)

const sceneYAML = `
name: test
bodies:
  - name: pelvis_link
  - name: torso_link
    offset: [0, 0, 0.3]
joints:
  - {name: hip, inertia: 0.05, damping: 0.5, range: [-2, 2]}
  - {name: knee, inertia: 0.05, damping: 0.5, range: [-0.1, 2.5]}
`

// net is a scripted policy graph.
type net struct {
	in, out []policy.TensorSpec
	run     func(in [][]float32) ([][]float32, error)
	calls   int
}

func (n *net) Inputs() []policy.TensorSpec  { return n.in }
func (n *net) Outputs() []policy.TensorSpec { return n.out }
func (n *net) Close() error                 { return nil }

func (n *net) Run(in [][]float32) ([][]float32, error) {
	n.calls++
	return n.run(in)
}

func spec(name string, dims ...int64) policy.TensorSpec {
	return policy.TensorSpec{Name: name, Shape: dims}
}

func inc(v []float32) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] + 1
	}
	return out
}

// networks returns an encoder that counts calls in its hidden state and an
// actor whose action comes from act.
func networks(act func(call int) ([]float32, error)) (*net, *net) {
	enc := &net{
		in:  []policy.TensorSpec{spec("obs", 1, 15), spec("h0", 1, 1, 4), spec("c0", 1, 1, 4)},
		out: []policy.TensorSpec{spec("latent", 1, 3), spec("h", 1, 1, 4), spec("c", 1, 1, 4)},
	}
	enc.run = func(in [][]float32) ([][]float32, error) {
		return [][]float32{make([]float32, 3), inc(in[1]), inc(in[2])}, nil
	}
	actor := &net{
		in:  []policy.TensorSpec{spec("obs", 1, 15), spec("latent", 1, 3), spec("h0", 1, 1, 2), spec("c0", 1, 1, 2)},
		out: []policy.TensorSpec{spec("action", 1, 2), spec("h", 1, 1, 2), spec("c", 1, 1, 2)},
	}
	actor.run = func(in [][]float32) ([][]float32, error) {
		a, err := act(actor.calls)
		if err != nil {
			return nil, err
		}
		return [][]float32{a, inc(in[2]), inc(in[3])}, nil
	}
	return enc, actor
}

func zeroAction(int) ([]float32, error) { return []float32{0, 0}, nil }

// script replays frames, one per control tick, then idles.
type script struct {
	kind   input.Kind
	frames []input.Frame
	polls  int
	closed bool
}

func (s *script) Name() string { return "script" }

func (s *script) Close() error {
	s.closed = true
	return nil
}

func (s *script) Poll() input.Frame {
	i := s.polls
	s.polls++
	if i < len(s.frames) {
		return s.frames[i]
	}
	return input.Frame{Kind: s.kind}
}

func events(kind input.Kind, es ...input.Event) input.Frame {
	return input.Frame{Kind: kind, Events: es}
}

type harness struct {
	cfg    *config.Config
	body   *physics.Body
	actor  *net
	pipe   *policy.Pipeline
	source *script
	out    *bytes.Buffer
	store  *storage.Store
	logs   *observer.ObservedLogs
	runner *deploy.Runner
}

func testConfig(duration float64) *config.Config {
	cfg := config.DefaultConfig()
	cfg.PolicyPath = "policies/test"
	cfg.ScenePath = "scenes/test.yaml"
	cfg.SimulationDuration = duration
	cfg.NumActions = 2
	cfg.NumObs = 15
	cfg.Kps = []float64{100, 100}
	cfg.Kds = []float64{2, 2}
	cfg.DefaultAngles = []float64{0, 0}
	cfg.ActionScale = 0.25
	cfg.AngVelScale = 0.25
	cfg.DofVelScale = 0.05
	cfg.GamepadEnabled = false
	cfg.KeyboardEnabled = true
	cfg.RecordDuration = 0
	return cfg
}

func newHarness(cfg *config.Config, src *script, act func(int) ([]float32, error)) *harness {
	GinkgoHelper()
	Expect(cfg.Validate()).To(Succeed())

	scenePath := filepath.Join(GinkgoT().TempDir(), "scene.yaml")
	Expect(os.WriteFile(scenePath, []byte(sceneYAML), 0644)).To(Succeed())
	body, err := physics.Load(scenePath, cfg.SimulationDt)
	Expect(err).NotTo(HaveOccurred())

	enc, actor := networks(act)
	pipe, err := policy.NewPipeline(enc, actor, cfg.ObsDim(), cfg.NumActions)
	Expect(err).NotTo(HaveOccurred())

	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		cfg:    cfg,
		body:   body,
		actor:  actor,
		pipe:   pipe,
		source: src,
		out:    &bytes.Buffer{},
		store:  storage.New(filepath.Join(GinkgoT().TempDir(), "runs")),
		logs:   logs,
	}
	h.runner, err = deploy.New(cfg, deploy.Deps{
		Sim:      body,
		Pipeline: pipe,
		Source:   src,
		Output:   h.out,
		Store:    h.store,
		Joints:   []string{"hip", "knee"},
		Logger:   zap.New(core),
	})
	Expect(err).NotTo(HaveOccurred())
	return h
}

func (h *harness) run() deploy.Result {
	GinkgoHelper()
	res, err := h.runner.Run(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return res
}

var _ = Describe("Runner", func() {
	Describe("mode cycling", func() {
		It("goes Walk, Run, DisturbanceTest and back to Walk", func() {
			src := &script{kind: input.Incremental, frames: []input.Frame{
				events(input.Incremental, input.EventCycleMode),
				events(input.Incremental, input.EventCycleMode),
			}}
			h := newHarness(testConfig(0.04), src, zeroAction)
			h.run()
			Expect(h.runner.State().Modes.Mode()).To(Equal(mode.DisturbanceTest))

			src = &script{kind: input.Incremental, frames: []input.Frame{
				events(input.Incremental, input.EventCycleMode),
				events(input.Incremental, input.EventCycleMode),
				events(input.Incremental, input.EventCycleMode),
			}}
			h = newHarness(testConfig(0.06), src, zeroAction)
			h.run()
			Expect(h.runner.State().Modes.Mode()).To(Equal(mode.Walk))
			Expect(h.out.String()).To(ContainSubstring("Mode: Walk"))
		})

		It("forces the yaw command to zero in DisturbanceTest", func() {
			src := &script{kind: input.Absolute, frames: []input.Frame{
				events(input.Absolute, input.EventCycleMode),
				{Kind: input.Absolute, Events: []input.Event{input.EventCycleMode}, Sticks: input.Sticks{LeftX: 1, RightY: 1}},
				{Kind: input.Absolute, Sticks: input.Sticks{LeftX: 1, RightY: 1}},
			}}
			h := newHarness(testConfig(0.06), src, zeroAction)
			h.run()

			st := h.runner.State()
			Expect(st.Modes.Mode()).To(Equal(mode.DisturbanceTest))
			Expect(st.Command.Wz).To(BeZero())
			Expect(st.Command.Vx).To(BeNumerically("~", h.cfg.ModeLimits.Disturbance.MaxForward, 1e-9))
			Expect(h.body.ExternalForce().Norm()).To(BeNumerically("~", h.cfg.DisturbanceForceScale, 1e-6))
			Expect(h.runner.Metrics()["max_disturbance"]).To(BeNumerically("~", h.cfg.DisturbanceForceScale, 1e-6))
		})
	})

	Describe("startup", func() {
		It("logs the gains of every joint", func() {
			h := newHarness(testConfig(0.02), &script{kind: input.Incremental}, zeroAction)

			entries := h.logs.FilterMessage("Joint gains").All()
			Expect(entries).To(HaveLen(2))
			fields := entries[1].ContextMap()
			Expect(fields).To(HaveKeyWithValue("joint", "knee"))
			Expect(fields).To(HaveKeyWithValue("kp", 100.0))
			Expect(fields).To(HaveKeyWithValue("kd", 2.0))
		})
	})

	Describe("decimation", func() {
		It("evaluates the policy once every control_decimation steps", func() {
			h := newHarness(testConfig(0.19), &script{kind: input.Incremental}, zeroAction)
			res := h.run()

			Expect(res.Steps).To(Equal(95))
			Expect(res.Ticks).To(Equal(9))
			Expect(h.actor.calls).To(Equal(9))
		})

		It("latches the action between control ticks", func() {
			act := func(call int) ([]float32, error) { return []float32{float32(call), 0}, nil }
			h := newHarness(testConfig(0.02), &script{kind: input.Incremental}, act)
			h.run()

			Expect(h.runner.State().Action).To(Equal(dynamo.Action{1, 0}))
			Expect(h.runner.Stepper().Counter()).To(Equal(10))
		})
	})

	Describe("zero command", func() {
		It("settles with the velocity error going to zero", func() {
			h := newHarness(testConfig(2.0), &script{kind: input.Incremental}, zeroAction)
			res := h.run()

			Expect(res.Quit).To(BeFalse())
			Expect(h.runner.State().Command).To(Equal(dynamo.Command{}))
			Expect(h.runner.State().Actual.Norm()).To(BeNumerically("<", 1e-2))
			Expect(h.out.String()).To(ContainSubstring("Robot Status Display"))
		})
	})

	Describe("reset", func() {
		It("restores the initial robot and loop state", func() {
			act := func(int) ([]float32, error) { return []float32{0.4, -0.4}, nil }
			src := &script{kind: input.Incremental, frames: []input.Frame{
				{Kind: input.Incremental, Step: dynamo.Command{Vx: 0.3}},
				events(input.Incremental),
				events(input.Incremental, input.EventReset),
			}}
			h := newHarness(testConfig(0.062), src, act)
			initial := h.body.BasePosition()[2]
			res := h.run()
			Expect(res.Steps).To(Equal(31))

			st := h.runner.State()
			Expect(st.ResetRequested).To(BeFalse())
			Expect(st.Message).To(Equal(deploy.ResetMessage))
			Expect(st.Command).To(Equal(h.cfg.InitialCommand()))
			Expect(st.Action).To(Equal(dynamo.Action{0, 0}))
			Expect(st.Phase.Value()).To(BeZero())
			Expect(h.runner.Stepper().Counter()).To(Equal(1))
			Expect(h.body.BasePosition()[2]).To(BeNumerically("~", initial, 1e-3))
			Expect(h.body.ExternalForce()).To(Equal(dynamo.Vec3{}))
		})

		It("reseeds the display filter", func() {
			push := input.Frame{Kind: input.Absolute, Sticks: input.Sticks{LeftX: 1}}
			src := &script{kind: input.Absolute, frames: []input.Frame{
				events(input.Absolute, input.EventCycleMode),
				events(input.Absolute, input.EventCycleMode),
				push,
				push,
				events(input.Absolute, input.EventReset),
			}}
			h := newHarness(testConfig(0.122), src, zeroAction)
			res := h.run()
			Expect(res.Steps).To(Equal(61))
			Expect(res.Ticks).To(Equal(6))

			// The last tick is the first after the reset, so it seeds the filter.
			Expect(h.runner.Display().Filtered()).To(Equal(h.runner.State().Actual))
		})

		It("zeroes the recurrent states", func() {
			src := &script{kind: input.Incremental, frames: []input.Frame{
				events(input.Incremental),
				events(input.Incremental, input.EventReset),
			}}
			cfg := testConfig(0.042)
			h := newHarness(cfg, src, zeroAction)
			h.run()
			Expect(h.runner.State().ResetRequested).To(BeFalse())
			Expect(h.pipe.HiddenNorm()).To(BeZero())

			// One more tick from zero gives every state value 1.
			cfg.SimulationDuration = 0.062
			h.run()
			Expect(h.actor.calls).To(Equal(3))
			Expect(h.pipe.HiddenNorm()).To(BeNumerically("~", math.Sqrt(12), 1e-6))
		})
	})

	Describe("inference failure", func() {
		It("stops the run with an InferenceError", func() {
			boom := errors.New("boom")
			act := func(call int) ([]float32, error) {
				if call == 2 {
					return nil, boom
				}
				return []float32{0, 0}, nil
			}
			h := newHarness(testConfig(1.0), &script{kind: input.Incremental}, act)
			res, err := h.runner.Run(context.Background())

			Expect(err).To(HaveOccurred())
			var ie *dynamo.InferenceError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Step).To(Equal(20))
			Expect(err).To(MatchError(dynamo.ErrInference))
			Expect(res.Steps).To(Equal(20))
		})

		It("rejects NaN actions", func() {
			nan := func(int) ([]float32, error) { return []float32{float32(math.NaN()), 0}, nil }
			h := newHarness(testConfig(0.1), &script{kind: input.Incremental}, nan)
			_, err := h.runner.Run(context.Background())
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
		})
	})

	Describe("quit", func() {
		It("ends the run cleanly", func() {
			src := &script{kind: input.Incremental, frames: []input.Frame{
				events(input.Incremental, input.EventQuit),
			}}
			h := newHarness(testConfig(1.0), src, zeroAction)
			res := h.run()

			Expect(res.Quit).To(BeTrue())
			Expect(res.Steps).To(Equal(10))
			Expect(h.runner.Close()).To(Succeed())
			Expect(src.closed).To(BeTrue())
		})

		It("stops when the context is cancelled", func() {
			h := newHarness(testConfig(1.0), &script{kind: input.Incremental}, zeroAction)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := h.runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(BeZero())
		})
	})

	Describe("camera", func() {
		It("ignores keyboard camera keys until camera control is on", func() {
			delta := input.CameraDelta{Angle: 0.1}
			src := &script{kind: input.Incremental, frames: []input.Frame{
				{Kind: input.Incremental, Camera: delta},
				{Kind: input.Incremental, Camera: delta, Events: []input.Event{input.EventToggleCameraControl}},
			}}
			h := newHarness(testConfig(0.04), src, zeroAction)
			h.run()

			st := h.runner.State()
			Expect(st.Flags.CameraControl).To(BeTrue())
			Expect(st.Camera.Angle).To(BeNumerically("~", 0.1, 1e-12))
		})

		It("moves with the D-pad only while tracking", func() {
			delta := input.CameraDelta{Distance: 0.5}
			src := &script{kind: input.Absolute, frames: []input.Frame{
				{Kind: input.Absolute, Camera: delta},
				{Kind: input.Absolute, Camera: delta, Events: []input.Event{input.EventToggleTracking}},
			}}
			h := newHarness(testConfig(0.04), src, zeroAction)
			h.run()

			st := h.runner.State()
			Expect(st.Modes.Tracking()).To(BeTrue())
			Expect(st.Camera.Distance).To(BeNumerically("~", viewer.TrackDistance+0.5, 1e-12))
			Expect(st.Eye).NotTo(Equal(dynamo.Vec3{}))
		})

		It("toggles the force and contact overlays", func() {
			src := &script{kind: input.Absolute, frames: []input.Frame{
				events(input.Absolute, input.EventToggleForces, input.EventToggleContacts),
			}}
			h := newHarness(testConfig(0.02), src, zeroAction)
			h.run()

			Expect(h.runner.State().Flags.ShowForces).To(BeTrue())
			Expect(h.runner.State().Flags.ShowContacts).To(BeTrue())
			Expect(h.out.String()).To(ContainSubstring("X:Force"))
		})
	})

	Describe("keyboard command", func() {
		It("steps and clamps the command to the mode limits", func() {
			up := input.Frame{Kind: input.Incremental, Step: dynamo.Command{Vx: 0.4}}
			src := &script{kind: input.Incremental, frames: []input.Frame{up, up, up, up}}
			h := newHarness(testConfig(0.08), src, zeroAction)
			h.run()

			Expect(h.runner.State().Command.Vx).To(BeNumerically("~", h.cfg.ModeLimits.Walk.MaxForward, 1e-12))
		})
	})

	Describe("recording", func() {
		It("saves a run once the window elapses", func() {
			cfg := testConfig(0.2)
			cfg.RecordDuration = 0.05
			h := newHarness(cfg, &script{kind: input.Incremental}, zeroAction)
			res := h.run()

			Expect(res.RunID).NotTo(BeEmpty())
			runs, err := h.store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Joints).To(Equal([]string{"hip", "knee"}))

			samples, err := h.store.LoadSamples(res.RunID)
			Expect(err).NotTo(HaveOccurred())
			Expect(samples).To(HaveLen(3))
			Expect(samples[0].Torque).To(HaveLen(2))
		})
	})
})
