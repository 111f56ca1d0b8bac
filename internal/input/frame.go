package input

import "github.com/san-kum/e3deploy/internal/dynamo"

type Kind int

const (
	// Absolute frames set the command from stick deflection.
	Absolute Kind = iota
	// Incremental frames step the current command.
	Incremental
)

// Sticks are normalized deflections in [-1, 1]. Positive is forward, left
// and counter-clockwise.
type Sticks struct {
	LeftX  float64
	LeftY  float64
	RightX float64
	RightY float64
}

// CameraDelta is a camera change already scaled by the configured steps.
type CameraDelta struct {
	Angle     float64
	Elevation float64
	Distance  float64
}

func (c CameraDelta) IsZero() bool { return c == CameraDelta{} }

type Frame struct {
	Kind   Kind
	Sticks Sticks
	// Step is the command increment of an Incremental frame.
	Step   dynamo.Command
	Camera CameraDelta
	Events []Event
}

func (f Frame) Has(e Event) bool {
	for _, ev := range f.Events {
		if ev == e {
			return true
		}
	}
	return false
}

// Source is polled from the loop goroutine. Poll never blocks.
type Source interface {
	Name() string
	Poll() Frame
	Close() error
}

// Null is used when no device is available. The command stays where it is.
type Null struct{}

func (Null) Name() string { return "none" }
func (Null) Poll() Frame  { return Frame{Kind: Incremental} }
func (Null) Close() error { return nil }
