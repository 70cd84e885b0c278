package engine

import (
	"errors"
	"fmt"
)

// ContractError reports a call that violates the outer/nested calling
// convention or passes options the runtime cannot honor.
type ContractError struct {
	// Code identifies the violated rule.
	Code ContractCode

	// Operator is the name of the called operator, if known.
	Operator string

	// Message is a human-readable description.
	Message string
}

// ContractCode categorizes contract violations.
type ContractCode string

const (
	// ErrCodeMissingOut indicates an outer call without an out value.
	ErrCodeMissingOut ContractCode = "MISSING_OUT"

	// ErrCodeInvalidOut indicates an out value that is not a field or a
	// tuple of fields.
	ErrCodeInvalidOut ContractCode = "INVALID_OUT"

	// ErrCodeNestedOut indicates a nested call that passed out or a domain.
	ErrCodeNestedOut ContractCode = "NESTED_OUT"

	// ErrCodeNestedProvider indicates a nested call that passed an offset
	// provider.
	ErrCodeNestedProvider ContractCode = "NESTED_PROVIDER"

	// ErrCodeUnknownBackend indicates a backend name the runtime does not
	// know.
	ErrCodeUnknownBackend ContractCode = "UNKNOWN_BACKEND"

	// ErrCodeNoOperator indicates a call with a nil operator.
	ErrCodeNoOperator ContractCode = "NO_OPERATOR"
)

func (e *ContractError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("%s: %s (operator=%s)", e.Code, e.Message, e.Operator)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContractError reports whether err is a ContractError.
// Uses errors.As to handle wrapped errors.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// HasContractCode reports whether err is a ContractError with the given code.
func HasContractCode(err error, code ContractCode) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// ErrOperatorPanic wraps a panic recovered from inside an operator call.
var ErrOperatorPanic = errors.New("operator panicked")
