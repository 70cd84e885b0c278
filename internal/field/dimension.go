package field

import (
	"fmt"
	"strings"
)

// DimKind classifies a dimension.
type DimKind int

const (
	// Horizontal dimensions index mesh entities (cells, edges, vertices).
	Horizontal DimKind = iota
	// Vertical dimensions index model levels.
	Vertical
	// Local dimensions index neighbors-per-element.
	Local
)

func (k DimKind) String() string {
	switch k {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("DimKind(%d)", int(k))
	}
}

// ParseDimKind parses the lower-case name produced by DimKind.String.
func ParseDimKind(s string) (DimKind, error) {
	switch strings.ToLower(s) {
	case "horizontal", "":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	case "local":
		return Local, nil
	default:
		return 0, fmt.Errorf("unknown dimension kind %q: must be horizontal, vertical, or local", s)
	}
}

// Dimension is a zero-size axis tag. Two dimensions are the same dimension
// exactly when name and kind are equal.
type Dimension struct {
	Name string
	Kind DimKind
}

// NewDimension returns a dimension tag.
func NewDimension(name string, kind DimKind) Dimension {
	return Dimension{Name: name, Kind: kind}
}

func (d Dimension) String() string { return d.Name }

// IsLocal reports whether d is a neighbors-per-element axis.
func (d Dimension) IsLocal() bool { return d.Kind == Local }

// Offset is a named directed relation from a source dimension to one or two
// target dimensions. A second target, if present, is the LOCAL neighbor axis.
type Offset struct {
	Name    string
	Source  Dimension
	Targets []Dimension
}

// NewOffset validates and returns an offset.
func NewOffset(name string, source Dimension, targets ...Dimension) (Offset, error) {
	if name == "" {
		return Offset{}, &DimensionMismatch{Message: "offset name is required"}
	}
	switch len(targets) {
	case 1:
	case 2:
		if !targets[1].IsLocal() {
			return Offset{}, &DimensionMismatch{
				Offset:  name,
				Message: fmt.Sprintf("second target %s must be a LOCAL dimension, got %s", targets[1].Name, targets[1].Kind),
			}
		}
	default:
		return Offset{}, &DimensionMismatch{
			Offset:  name,
			Message: fmt.Sprintf("offset needs one or two target dimensions, got %d", len(targets)),
		}
	}
	return Offset{Name: name, Source: source, Targets: append([]Dimension(nil), targets...)}, nil
}

// MustOffset is like NewOffset but panics on error.
// Use only in tests or for package-level declarations.
func MustOffset(name string, source Dimension, targets ...Dimension) Offset {
	o, err := NewOffset(name, source, targets...)
	if err != nil {
		panic(err)
	}
	return o
}

// Target returns the first (non-local) target dimension.
func (o Offset) Target() Dimension { return o.Targets[0] }

// LocalDim returns the LOCAL neighbor axis, if the offset declares one.
func (o Offset) LocalDim() (Dimension, bool) {
	if len(o.Targets) == 2 {
		return o.Targets[1], true
	}
	return Dimension{}, false
}

func (o Offset) String() string {
	names := make([]string, len(o.Targets))
	for i, t := range o.Targets {
		names[i] = t.Name
	}
	return fmt.Sprintf("%s(%s -> %s)", o.Name, o.Source.Name, strings.Join(names, ","))
}

func dimNames(dims []Dimension) string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func indexOf(dims []Dimension, d Dimension) int {
	for i, x := range dims {
		if x == d {
			return i
		}
	}
	return -1
}

// containsOrdered reports whether every element of sub appears in super in
// the same relative order.
func containsOrdered(super, sub []Dimension) bool {
	j := 0
	for _, d := range super {
		if j < len(sub) && sub[j] == d {
			j++
		}
	}
	return j == len(sub)
}
