package physics

import (
	"fmt"
	"os"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGravity          = 9.81
	DefaultSupportStiffness = 20000.0
	DefaultSupportDamping   = 1500.0
	DefaultUprightStiffness = 600.0
	DefaultUprightDamping   = 80.0
	DefaultDrag             = 60.0
	DefaultYawDrag          = 10.0
	DefaultLimitStiffness   = 500.0
)

type Scene struct {
	Name    string        `yaml:"name"`
	Gravity float64       `yaml:"gravity"`
	Base    BaseConfig    `yaml:"base"`
	Bodies  []BodyConfig  `yaml:"bodies"`
	Joints  []JointConfig `yaml:"joints"`
}

type BaseConfig struct {
	Mass             float64    `yaml:"mass"`
	Height           float64    `yaml:"height"`
	Inertia          [3]float64 `yaml:"inertia"`
	SupportStiffness float64    `yaml:"support_stiffness"`
	SupportDamping   float64    `yaml:"support_damping"`
	UprightStiffness float64    `yaml:"upright_stiffness"`
	UprightDamping   float64    `yaml:"upright_damping"`
	Drag             float64    `yaml:"drag"`
	YawDrag          float64    `yaml:"yaw_drag"`
}

type BodyConfig struct {
	Name   string     `yaml:"name"`
	Offset [3]float64 `yaml:"offset"`
}

type JointConfig struct {
	Name    string     `yaml:"name"`
	Inertia float64    `yaml:"inertia"`
	Damping float64    `yaml:"damping"`
	Range   [2]float64 `yaml:"range"`
	Init    float64    `yaml:"init"`
}

func defaultScene() *Scene {
	return &Scene{
		Gravity: DefaultGravity,
		Base: BaseConfig{
			Mass:             30,
			Height:           0.85,
			Inertia:          [3]float64{1.5, 1.2, 0.6},
			SupportStiffness: DefaultSupportStiffness,
			SupportDamping:   DefaultSupportDamping,
			UprightStiffness: DefaultUprightStiffness,
			UprightDamping:   DefaultUprightDamping,
			Drag:             DefaultDrag,
			YawDrag:          DefaultYawDrag,
		},
	}
}

// LoadScene reads a scene file. Any failure wraps [dynamo.ErrSceneNotFound].
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrSceneNotFound, err)
	}
	s := defaultScene()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", dynamo.ErrSceneNotFound, path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scene) Validate() error {
	if len(s.Joints) == 0 {
		return fmt.Errorf("%w: scene %q has no joints", dynamo.ErrSceneNotFound, s.Name)
	}
	if s.Base.Mass <= 0 {
		return fmt.Errorf("%w: base mass must be positive", dynamo.ErrSceneNotFound)
	}
	for i, inertia := range s.Base.Inertia {
		if inertia <= 0 {
			return fmt.Errorf("%w: base inertia[%d] must be positive", dynamo.ErrSceneNotFound, i)
		}
	}
	for _, j := range s.Joints {
		if j.Inertia <= 0 {
			return fmt.Errorf("%w: joint %q inertia must be positive", dynamo.ErrSceneNotFound, j.Name)
		}
		if j.Range[0] > j.Range[1] {
			return fmt.Errorf("%w: joint %q range is inverted", dynamo.ErrSceneNotFound, j.Name)
		}
	}
	return nil
}

// limited reports whether the joint declares a range. An omitted range is unlimited.
func (j JointConfig) limited() bool {
	return j.Range != [2]float64{}
}
