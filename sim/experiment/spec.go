// Package experiment describes and runs epidemic experiments: a model, a dynamics,
// a generated network and parameters, repeated over partitioned seeds.
package experiment

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/episim/episim/sim"
)

// validate is a singleton validator instance
var validate = validator.New()

// Network kinds.
const (
	NetworkErdosRenyi = "er"
	NetworkRing       = "ring"
	NetworkComplete   = "complete"
)

// NetworkSpec describes the generated network.
type NetworkSpec struct {
	Kind  string  `yaml:"kind" validate:"required,oneof=er ring complete"`
	Nodes int     `yaml:"nodes" validate:"required,min=1"`
	KMean float64 `yaml:"kmean,omitempty" validate:"gte=0"` // er: mean degree
	K     int     `yaml:"k,omitempty" validate:"gte=0"`     // ring: neighbours on each side
}

// Spec is a complete experiment, loadable from YAML.
type Spec struct {
	Name            string             `yaml:"name,omitempty"`
	Model           string             `yaml:"model" validate:"required,oneof=sir sis seir"`
	Dynamics        string             `yaml:"dynamics" validate:"required,oneof=synchronous stochastic"`
	Network         NetworkSpec        `yaml:"network"`
	Params          map[string]float64 `yaml:"params,omitempty"`
	Seed            int64              `yaml:"seed"`
	Repetitions     int                `yaml:"repetitions" validate:"min=1"`
	MaxTime         float64            `yaml:"max_time,omitempty" validate:"gte=0"`
	MonitorInterval float64            `yaml:"monitor_interval,omitempty" validate:"gte=0"`
}

// LoadSpec reads a YAML experiment file. Unknown keys are rejected.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}
	spec := Spec{Repetitions: 1}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	switch s.Network.Kind {
	case NetworkErdosRenyi:
		if s.Network.KMean <= 0 {
			return fmt.Errorf("network.kmean must be positive for %s networks, got %g", s.Network.Kind, s.Network.KMean)
		}
	case NetworkRing:
		if s.Network.K < 1 || 2*s.Network.K >= s.Network.Nodes {
			return fmt.Errorf("network.k must be in [1, nodes/2) for ring networks, got %d", s.Network.K)
		}
	}
	return nil
}

// Parameters converts the spec's params for Build.
func (s *Spec) Parameters() sim.Parameters {
	p := make(sim.Parameters, len(s.Params))
	for k, v := range s.Params {
		p[k] = v
	}
	return p
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
