package policy

import (
	"errors"
	"fmt"

	"github.com/san-kum/e3deploy/internal/dynamo"
	ort "github.com/yalue/onnxruntime_go"
)

// InitRuntime loads the onnxruntime shared library once per process. An
// empty libPath uses the platform default name.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: onnxruntime: %v", dynamo.ErrConfig, err)
	}
	return nil
}

func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXNetwork is a float32 graph with tensors allocated once at load.
type ONNXNetwork struct {
	path    string
	inputs  []TensorSpec
	outputs []TensorSpec
	inT     []*ort.Tensor[float32]
	outT    []*ort.Tensor[float32]
	session *ort.AdvancedSession
}

func specsFrom(info []ort.InputOutputInfo) ([]TensorSpec, error) {
	specs := make([]TensorSpec, len(info))
	for i, io := range info {
		if io.DataType != ort.TensorElementDataTypeFloat {
			return nil, fmt.Errorf("%w: %s is %v, expected float32", dynamo.ErrShapeMismatch, io.Name, io.DataType)
		}
		shape := make([]int64, len(io.Dimensions))
		for j, d := range io.Dimensions {
			if d < 1 {
				d = 1
			}
			shape[j] = d
		}
		specs[i] = TensorSpec{Name: io.Name, Shape: shape}
	}
	return specs, nil
}

func NewONNXNetwork(path string) (*ONNXNetwork, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrModelNotFound, path, err)
	}
	n := &ONNXNetwork{path: path}
	if n.inputs, err = specsFrom(inInfo); err != nil {
		return nil, err
	}
	if n.outputs, err = specsFrom(outInfo); err != nil {
		return nil, err
	}

	inNames := make([]string, len(n.inputs))
	inVals := make([]ort.Value, len(n.inputs))
	for i, s := range n.inputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(s.Shape...))
		if err != nil {
			n.Close()
			return nil, err
		}
		n.inT = append(n.inT, t)
		inNames[i], inVals[i] = s.Name, t
	}

	outNames := make([]string, len(n.outputs))
	outVals := make([]ort.Value, len(n.outputs))
	for i, s := range n.outputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(s.Shape...))
		if err != nil {
			n.Close()
			return nil, err
		}
		n.outT = append(n.outT, t)
		outNames[i], outVals[i] = s.Name, t
	}

	n.session, err = ort.NewAdvancedSession(path, inNames, outNames, inVals, outVals, nil)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrModelNotFound, path, err)
	}
	return n, nil
}

func (n *ONNXNetwork) Inputs() []TensorSpec  { return n.inputs }
func (n *ONNXNetwork) Outputs() []TensorSpec { return n.outputs }

// Run copies inputs into the session tensors and returns copies of the outputs.
func (n *ONNXNetwork) Run(inputs [][]float32) ([][]float32, error) {
	if len(inputs) != len(n.inT) {
		return nil, fmt.Errorf("%w: %d inputs, graph takes %d", dynamo.ErrShapeMismatch, len(inputs), len(n.inT))
	}
	for i, in := range inputs {
		dst := n.inT[i].GetData()
		if len(in) != len(dst) {
			return nil, fmt.Errorf("%w: input %s has %d values, expected %d",
				dynamo.ErrShapeMismatch, n.inputs[i].Name, len(in), len(dst))
		}
		copy(dst, in)
	}
	if err := n.session.Run(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(n.outT))
	for i, t := range n.outT {
		out[i] = append([]float32(nil), t.GetData()...)
	}
	return out, nil
}

func (n *ONNXNetwork) Close() error {
	var errs []error
	if n.session != nil {
		errs = append(errs, n.session.Destroy())
		n.session = nil
	}
	for _, t := range append(n.inT, n.outT...) {
		errs = append(errs, t.Destroy())
	}
	n.inT, n.outT = nil, nil
	return errors.Join(errs...)
}
