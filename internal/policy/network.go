package policy

import "fmt"

// TensorSpec describes one float32 tensor of a graph. Dynamic dimensions
// are fixed to 1.
type TensorSpec struct {
	Name  string
	Shape []int64
}

// Size is the number of elements.
func (t TensorSpec) Size() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

func (t TensorSpec) String() string {
	return fmt.Sprintf("%s%v", t.Name, t.Shape)
}

// Network is a graph evaluated on flat float32 buffers, one per input and
// output in declaration order.
type Network interface {
	Inputs() []TensorSpec
	Outputs() []TensorSpec
	Run(inputs [][]float32) ([][]float32, error)
	Close() error
}
