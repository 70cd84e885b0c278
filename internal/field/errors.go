package field

import (
	"errors"
	"fmt"
)

// Shape error codes.
const (
	CodeRank      = "E201" // len(dims) != rank(data)
	CodeSize      = "E202" // dimension sizes disagree
	CodeDims      = "E203" // dims not contained in broadcast dims / out dims
	CodeDType     = "E204" // element type not accepted by the operation
	CodeTuple     = "E205" // tuple structure mismatch
	CodeBounds    = "E206" // connectivity index out of bounds
	CodeArgument  = "E207" // argument does not match its annotation
	CodeReduction = "E208" // reduction axis missing or not LOCAL
)

// ShapeError reports a dims/rank/size mismatch between fields.
type ShapeError struct {
	Code    string
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("[%s] shape error: %s", e.Code, e.Message)
}

func shapeErrorf(code, format string, args ...any) *ShapeError {
	return &ShapeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DimensionMismatch reports an offset whose connectivity (or input field)
// does not agree with the offset's declared dimensions.
type DimensionMismatch struct {
	Offset  string
	Message string
}

func (e *DimensionMismatch) Error() string {
	if e.Offset != "" {
		return fmt.Sprintf("dimension mismatch for offset %s: %s", e.Offset, e.Message)
	}
	return "dimension mismatch: " + e.Message
}

// IsShapeError reports whether err is (or wraps) a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsDimensionMismatch reports whether err is (or wraps) a DimensionMismatch.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatch
	return errors.As(err, &dm)
}
