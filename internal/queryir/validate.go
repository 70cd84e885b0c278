package queryir

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/roach88/fieldop/internal/ir"
)

// QueryError reports a query that does not fit its table.
type QueryError struct {
	Table   string
	Field   string
	Message string
}

func (e *QueryError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("query %s: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("query %s.%s: %s", e.Table, e.Field, e.Message)
}

// Validate checks q against the tables it may read. All problems are
// returned, combined with multierr.
func Validate(q Query, tables ...Table) error {
	if q == nil {
		return &QueryError{Message: "nil query"}
	}
	var sel Select
	switch s := q.(type) {
	case Select:
		sel = s
	case *Select:
		sel = *s
	default:
		return &QueryError{Message: fmt.Sprintf("unsupported query type %T", q)}
	}

	var table *Table
	for i := range tables {
		if tables[i].Name == sel.From {
			table = &tables[i]
			break
		}
	}
	if table == nil {
		return &QueryError{Table: sel.From, Message: "unknown table"}
	}

	var errs error
	for _, c := range sel.Columns {
		if _, ok := table.Column(c); !ok {
			errs = multierr.Append(errs, &QueryError{Table: table.Name, Field: c, Message: "unknown column"})
		}
	}
	if sel.Limit < 0 {
		errs = multierr.Append(errs, &QueryError{Table: table.Name, Message: fmt.Sprintf("negative limit %d", sel.Limit)})
	}
	return multierr.Append(errs, validatePredicate(*table, sel.Filter))
}

func validatePredicate(t Table, p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Compare:
		return validateCompare(t, pred)
	case *Compare:
		return validateCompare(t, *pred)
	case And:
		return validateAnd(t, pred)
	case *And:
		return validateAnd(t, *pred)
	default:
		return &QueryError{Table: t.Name, Message: fmt.Sprintf("unsupported predicate type %T", p)}
	}
}

func validateAnd(t Table, and And) error {
	var errs error
	for _, p := range and.Predicates {
		errs = multierr.Append(errs, validatePredicate(t, p))
	}
	return errs
}

func validateCompare(t Table, c Compare) error {
	col, ok := t.Column(c.Field)
	if !ok {
		return &QueryError{Table: t.Name, Field: c.Field, Message: "unknown column"}
	}
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	default:
		return &QueryError{Table: t.Name, Field: c.Field, Message: fmt.Sprintf("unknown operator %q", c.Op)}
	}
	if c.Op.ordered() && col.Kind != KindInteger {
		return &QueryError{Table: t.Name, Field: c.Field, Message: fmt.Sprintf("%s needs an integer column, %s is %s", c.Op, c.Field, col.Kind)}
	}

	var kind Kind
	switch c.Value.(type) {
	case ir.String:
		kind = KindText
	case ir.Int, ir.Bool:
		kind = KindInteger
	case nil, ir.Null:
		return &QueryError{Table: t.Name, Field: c.Field, Message: "compared to NULL"}
	default:
		return &QueryError{Table: t.Name, Field: c.Field, Message: fmt.Sprintf("unsupported value %T", c.Value)}
	}
	if kind != col.Kind {
		return &QueryError{Table: t.Name, Field: c.Field, Message: fmt.Sprintf("%s value for %s column", kind, col.Kind)}
	}
	return nil
}
