package manifest

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"go.uber.org/multierr"
)

// Error codes. E00x are load failures, E12x are manifest content errors.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build or schema unification failed
	ErrCodeDimension    = "E120" // Invalid dimension
	ErrCodeOffset       = "E121" // Invalid offset
	ErrCodeConnectivity = "E122" // Invalid connectivity table
	ErrCodeField        = "E123" // Invalid field
	ErrCodeOperator     = "E124" // Operator failed to define
	ErrCodeRun          = "E125" // Invalid run
	ErrCodeUndefined    = "E126" // Reference to an undefined name
)

// LoadError is one problem found while loading a manifest.
type LoadError struct {
	Code    string
	Path    string // CUE path of the offending entry, e.g. "offset.E2C"
	Message string
	Pos     token.Pos // CUE position if available
	Err     error     // underlying error, if any
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Errors splits an error returned by Load into its individual problems.
func Errors(err error) []error {
	return multierr.Errors(err)
}

// cueError converts a CUE error into LoadErrors, one per CUE problem, so
// each keeps its own position.
func cueError(code string, err error) error {
	var out error
	for _, e := range cueerrors.Errors(err) {
		le := &LoadError{Code: code, Message: e.Error()}
		if ps := cueerrors.Positions(e); len(ps) > 0 {
			le.Pos = ps[0]
		}
		out = multierr.Append(out, le)
	}
	if out == nil {
		return &LoadError{Code: code, Message: err.Error()}
	}
	return out
}
