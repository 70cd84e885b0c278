package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/engine"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/manifest"
	"github.com/roach88/fieldop/internal/syntax"
)

// Error codes for failures outside manifest loading (E001-E126 are
// manifest and program validation codes).
const (
	ErrCodeTranslation = "E130" // operator does not translate
	ErrCodeCapability  = "E131" // captured value of an unusable kind
	ErrCodeContract    = "E140" // outer/nested call contract violated
	ErrCodeShape       = "E141" // argument, result or out shape mismatch
	ErrCodeDimension   = "E142" // offset and connectivity disagree
	ErrCodeWriteFailed = "E150" // output file could not be written
	ErrCodeNotFound    = "E151" // named run or operator does not exist
	ErrCodeQuery       = "E152" // run filter does not parse or fit the run log
)

// describeError maps err to a code, message and position for output.
func describeError(err error) CLIError {
	var le *manifest.LoadError
	if errors.As(err, &le) {
		ce := CLIError{Code: le.Code, Message: le.Path + ": " + le.Message}
		if le.Path == "" {
			ce.Message = le.Message
		}
		if le.Pos.IsValid() {
			ce.Position = le.Pos.Position().String()
		}
		return ce
	}
	var te *syntax.TranslationError
	if errors.As(err, &te) {
		ce := CLIError{Code: ErrCodeTranslation, Message: err.Error()}
		if te.Pos.IsValid() {
			ce.Position = te.Pos.String()
		}
		return ce
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return CLIError{Code: ve.Code, Message: err.Error()}
	}
	var contract *engine.ContractError
	if errors.As(err, &contract) {
		return CLIError{Code: ErrCodeContract, Message: err.Error()}
	}
	switch {
	case syntax.IsCapabilityError(err):
		return CLIError{Code: ErrCodeCapability, Message: err.Error()}
	case field.IsDimensionMismatch(err):
		return CLIError{Code: ErrCodeDimension, Message: err.Error()}
	case field.IsShapeError(err):
		return CLIError{Code: ErrCodeShape, Message: err.Error()}
	}
	return CLIError{Code: manifest.ErrCodeGeneric, Message: err.Error()}
}

// outputError outputs a single error and returns an ExitError carrying
// exitCode.
func outputError(formatter *OutputFormatter, exitCode int, ce CLIError) error {
	if formatter.JSON() {
		if err := json.NewEncoder(formatter.Writer).Encode(CLIResponse{Status: "error", Error: &ce}); err != nil {
			return err
		}
	} else {
		writeCLIError(formatter.Writer, ce)
	}
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", ce.Code, ce.Message))
}

// outputErrors outputs every error under title. In JSON the first error is
// the response error and all of them are listed in data.
func outputErrors(formatter *OutputFormatter, exitCode int, title string, errs []error) error {
	described := make([]CLIError, len(errs))
	for i, err := range errs {
		described[i] = describeError(err)
	}
	if len(described) == 1 {
		return outputError(formatter, exitCode, described[0])
	}

	if formatter.JSON() {
		first := described[0]
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   map[string]any{"errors": described},
			Error:  &first,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s\n\n", title)
		for _, ce := range described {
			writeCLIError(formatter.Writer, ce)
		}
	}
	return NewExitError(exitCode, fmt.Sprintf("%s with %d error(s)", strings.ToLower(title), len(errs)))
}

func writeCLIError(w io.Writer, ce CLIError) {
	if ce.Position != "" {
		fmt.Fprintf(w, "%s\n", ce.Position)
	}
	fmt.Fprintf(w, "  Error [%s]: %s\n", ce.Code, ce.Message)
}
