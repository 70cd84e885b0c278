package syntax

import (
	"errors"
	"fmt"
	"go/token"
)

// TranslationErrorKind categorizes translation errors.
type TranslationErrorKind string

const (
	// KindSyntax: the source does not parse, or names something undefined.
	KindSyntax TranslationErrorKind = "syntax"

	// KindConstruct: a construct outside the operator language (loops,
	// closures, forbidden built-ins, non-terminal returns, ...).
	KindConstruct TranslationErrorKind = "construct"

	// KindAnnotation: a parameter or result annotation that does not map
	// to a field, scalar or tuple type.
	KindAnnotation TranslationErrorKind = "annotation"

	// KindType: operands whose types cannot be combined, or a result that
	// disagrees with its annotation.
	KindType TranslationErrorKind = "type"
)

// TranslationError reports an operator the engine can never run: it names
// the offending construct and its source position.
type TranslationError struct {
	Kind      TranslationErrorKind
	Construct string
	Message   string
	Pos       token.Position
}

func (e *TranslationError) Error() string {
	where := ""
	if e.Pos.IsValid() {
		where = e.Pos.String() + ": "
	}
	if e.Construct != "" {
		return fmt.Sprintf("%s%s error: %s: %s", where, e.Kind, e.Construct, e.Message)
	}
	return fmt.Sprintf("%s%s error: %s", where, e.Kind, e.Message)
}

// CapabilityError reports a captured variable whose kind the operator
// language cannot use.
type CapabilityError struct {
	Name    string
	GoType  string
	Message string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capture %q (%s): %s", e.Name, e.GoType, e.Message)
}

// IsTranslationError reports whether err is a TranslationError.
// Uses errors.As to handle wrapped errors.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

// IsCapabilityError reports whether err is a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// TranslationKind returns the kind of a TranslationError in err's chain,
// or "" when there is none.
func TranslationKind(err error) TranslationErrorKind {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
