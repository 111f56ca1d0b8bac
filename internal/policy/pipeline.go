package policy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/san-kum/e3deploy/internal/dynamo"
)

const (
	EncoderFile = "HumanEncodernet.onnx"
	ActorFile   = "HumanActornet.onnx"
)

type recurrent struct {
	h, c []float32
}

func newRecurrent(h, c TensorSpec) recurrent {
	return recurrent{h: make([]float32, h.Size()), c: make([]float32, c.Size())}
}

func (r recurrent) zero() {
	clear(r.h)
	clear(r.c)
}

// Pipeline runs encoder then actor and carries both LSTM states between calls.
type Pipeline struct {
	encoder    Network
	actor      Network
	obsDim     int
	numActions int
	enc        recurrent
	act        recurrent
}

// NewPipeline checks both graphs against the observation width and action
// count.
func NewPipeline(encoder, actor Network, obsDim, numActions int) (*Pipeline, error) {
	if err := validateEncoder(encoder, obsDim); err != nil {
		return nil, err
	}
	latent := encoder.Outputs()[0].Size()
	if err := validateActor(actor, obsDim, latent, numActions); err != nil {
		return nil, err
	}

	ein, ain := encoder.Inputs(), actor.Inputs()
	return &Pipeline{
		encoder:    encoder,
		actor:      actor,
		obsDim:     obsDim,
		numActions: numActions,
		enc:        newRecurrent(ein[1], ein[2]),
		act:        newRecurrent(ain[2], ain[3]),
	}, nil
}

func shapeErr(graph, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", dynamo.ErrShapeMismatch, graph, fmt.Sprintf(format, args...))
}

func checkState(graph string, in, out TensorSpec) error {
	if in.Size() != out.Size() {
		return shapeErr(graph, "state input %s does not match output %s", in, out)
	}
	return nil
}

func validateEncoder(n Network, obsDim int) error {
	in, out := n.Inputs(), n.Outputs()
	if len(in) != 3 || len(out) != 3 {
		return shapeErr("encoder", "expected inputs (obs, h0, c0) and outputs (latent, h, c), got %d and %d", len(in), len(out))
	}
	if in[0].Size() != obsDim {
		return shapeErr("encoder", "obs input %s, expected %d values", in[0], obsDim)
	}
	if err := checkState("encoder", in[1], out[1]); err != nil {
		return err
	}
	return checkState("encoder", in[2], out[2])
}

func validateActor(n Network, obsDim, latent, numActions int) error {
	in, out := n.Inputs(), n.Outputs()
	if len(in) != 4 || len(out) != 3 {
		return shapeErr("actor", "expected inputs (obs, latent, h0, c0) and outputs (action, h, c), got %d and %d", len(in), len(out))
	}
	if in[0].Size() != obsDim {
		return shapeErr("actor", "obs input %s, expected %d values", in[0], obsDim)
	}
	if in[1].Size() != latent {
		return shapeErr("actor", "latent input %s, encoder produces %d values", in[1], latent)
	}
	if out[0].Size() != numActions {
		return shapeErr("actor", "action output %s, expected %d values", out[0], numActions)
	}
	if err := checkState("actor", in[2], out[1]); err != nil {
		return err
	}
	return checkState("actor", in[3], out[2])
}

func (p *Pipeline) ObsDim() int     { return p.obsDim }
func (p *Pipeline) NumActions() int { return p.numActions }

// Infer evaluates one observation and returns the new action.
func (p *Pipeline) Infer(obs []float32) (dynamo.Action, error) {
	if len(obs) != p.obsDim {
		return nil, fmt.Errorf("%w: observation has %d values, expected %d", dynamo.ErrShapeMismatch, len(obs), p.obsDim)
	}

	eout, err := p.encoder.Run([][]float32{obs, p.enc.h, p.enc.c})
	if err != nil {
		return nil, fmt.Errorf("%w: encoder: %v", dynamo.ErrInference, err)
	}
	if len(eout) != 3 {
		return nil, fmt.Errorf("%w: encoder returned %d outputs", dynamo.ErrInference, len(eout))
	}
	latent := eout[0]

	aout, err := p.actor.Run([][]float32{obs, latent, p.act.h, p.act.c})
	if err != nil {
		return nil, fmt.Errorf("%w: actor: %v", dynamo.ErrInference, err)
	}
	if len(aout) != 3 || len(aout[0]) != p.numActions {
		return nil, fmt.Errorf("%w: actor returned malformed outputs", dynamo.ErrInference)
	}

	action := make(dynamo.Action, p.numActions)
	for i, v := range aout[0] {
		action[i] = float64(v)
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrInference, dynamo.ErrInvalidState)
	}

	copy(p.enc.h, eout[1])
	copy(p.enc.c, eout[2])
	copy(p.act.h, aout[1])
	copy(p.act.c, aout[2])
	return action, nil
}

// Reset zeroes both recurrent states.
func (p *Pipeline) Reset() {
	p.enc.zero()
	p.act.zero()
}

// HiddenNorm is the norm over all recurrent state values. Zero after Reset.
func (p *Pipeline) HiddenNorm() float64 {
	var sum float64
	for _, buf := range [][]float32{p.enc.h, p.enc.c, p.act.h, p.act.c} {
		for _, v := range buf {
			sum += float64(v) * float64(v)
		}
	}
	return math.Sqrt(sum)
}

func (p *Pipeline) Close() error {
	return errors.Join(p.encoder.Close(), p.actor.Close())
}

// ModelPaths returns the encoder and actor files under dir.
func ModelPaths(dir string) (encoder, actor string) {
	return filepath.Join(dir, EncoderFile), filepath.Join(dir, ActorFile)
}

// Load opens both graphs under dir with onnxruntime. The runtime
// environment must already be initialized.
func Load(dir string, obsDim, numActions int) (*Pipeline, error) {
	encPath, actPath := ModelPaths(dir)
	for _, path := range []string{encPath, actPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", dynamo.ErrModelNotFound, path)
		}
	}

	encoder, err := NewONNXNetwork(encPath)
	if err != nil {
		return nil, err
	}
	actor, err := NewONNXNetwork(actPath)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	p, err := NewPipeline(encoder, actor, obsDim, numActions)
	if err != nil {
		encoder.Close()
		actor.Close()
		return nil, err
	}
	return p, nil
}
