package field

import (
	"fmt"
	"math"
)

// DType is the element type of a field.
type DType int

const (
	Float64 DType = iota
	Float32
	Int64
	Int32
	Bool
)

var dtypeNames = map[DType]string{
	Float64: "float64",
	Float32: "float32",
	Int64:   "int64",
	Int32:   "int32",
	Bool:    "bool",
}

func (t DType) String() string {
	if s, ok := dtypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DType(%d)", int(t))
}

// ParseDType accepts the Go spelling of an element type. "int" and "float"
// are aliases for int64 and float64.
func ParseDType(s string) (DType, bool) {
	switch s {
	case "float64", "float":
		return Float64, true
	case "float32":
		return Float32, true
	case "int64", "int":
		return Int64, true
	case "int32":
		return Int32, true
	case "bool":
		return Bool, true
	}
	return 0, false
}

// IsFloat reports whether t is a floating-point type.
func (t DType) IsFloat() bool { return t == Float64 || t == Float32 }

// IsInt reports whether t is an integer type.
func (t DType) IsInt() bool { return t == Int64 || t == Int32 }

// IsNumeric reports whether t supports arithmetic.
func (t DType) IsNumeric() bool { return t != Bool }

// rank orders types for promotion: bool < int32 < int64 < float32 < float64.
func (t DType) rank() int {
	switch t {
	case Bool:
		return 0
	case Int32:
		return 1
	case Int64:
		return 2
	case Float32:
		return 3
	default:
		return 4
	}
}

// Promote returns the common type of a and b.
func Promote(a, b DType) DType {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// normalize rounds v to the representable value of t.
func (t DType) normalize(v float64) float64 {
	switch t {
	case Float32:
		return float64(float32(v))
	case Int64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return math.Trunc(v)
	case Int32:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return float64(int32(int64(math.Trunc(v))))
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}

// minIdentity is the neutral element of a min reduction.
func (t DType) minIdentity() float64 {
	switch t {
	case Int64:
		return math.MaxInt64
	case Int32:
		return math.MaxInt32
	case Bool:
		return 1
	default:
		return math.Inf(1)
	}
}

// maxIdentity is the neutral element of a max reduction.
func (t DType) maxIdentity() float64 {
	switch t {
	case Int64:
		return math.MinInt64
	case Int32:
		return math.MinInt32
	case Bool:
		return 0
	default:
		return math.Inf(-1)
	}
}
