package manifest

import (
	"errors"
	"fmt"

	"github.com/roach88/fieldop/internal/field"
)

type dimensionSpec struct {
	Kind string `json:"kind"`
}

type offsetSpec struct {
	Source  string   `json:"source"`
	Targets []string `json:"targets"`
}

type connectivitySpec struct {
	Table        [][]int `json:"table"`
	MaxNeighbors int     `json:"max_neighbors"`
	SourceSize   *int    `json:"source_size,omitempty"`
}

type rampSpec struct {
	Start float64 `json:"start"`
	Step  float64 `json:"step"`
}

type fieldSpec struct {
	Dims  []string  `json:"dims"`
	Shape []int     `json:"shape"`
	DType string    `json:"dtype"`
	Data  []float64 `json:"data,omitempty"`
	Fill  *float64  `json:"fill,omitempty"`
	Ramp  *rampSpec `json:"ramp,omitempty"`
}

type operatorSpec struct {
	Source string `json:"source,omitempty"`
	File   string `json:"file,omitempty"`
}

type runSpec struct {
	Operator string           `json:"operator"`
	Args     []string         `json:"args"`
	Out      any              `json:"out"` // decoded separately: a field or a list of fields
	Backend  string           `json:"backend,omitempty"`
	Domain   map[string][]int `json:"domain,omitempty"`
	Offsets  []string         `json:"offsets,omitempty"`
}

// build creates the field described by s over dims.
func (s fieldSpec) build(dims []field.Dimension) (*field.Field, error) {
	dtype, ok := field.ParseDType(s.DType)
	if !ok {
		return nil, fmt.Errorf("unknown dtype %q", s.DType)
	}
	set := 0
	if s.Data != nil {
		set++
	}
	if s.Fill != nil {
		set++
	}
	if s.Ramp != nil {
		set++
	}
	if set > 1 {
		return nil, errors.New("data, fill and ramp are mutually exclusive")
	}

	switch {
	case s.Data != nil:
		return field.New(dims, s.Shape, s.Data, dtype)
	case s.Fill != nil:
		return field.Full(dims, s.Shape, *s.Fill, dtype)
	case s.Ramp != nil:
		n := 1
		for _, d := range s.Shape {
			n *= d
		}
		data := make([]float64, n)
		for i := range data {
			data[i] = s.Ramp.Start + float64(i)*s.Ramp.Step
		}
		return field.New(dims, s.Shape, data, dtype)
	default:
		return field.Zeros(dims, s.Shape, dtype)
	}
}
