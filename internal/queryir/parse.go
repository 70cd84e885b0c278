package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fieldop/internal/ir"
)

// operators in match order: two-character operators first.
var operators = []Op{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// ParseFilter parses "column<op>value" expressions into a conjunction
// over t. Values of integer columns must be integers; text values are
// taken verbatim. No expressions yields nil.
func ParseFilter(t Table, exprs []string) (Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	and := And{Predicates: make([]Predicate, 0, len(exprs))}
	for _, expr := range exprs {
		c, err := parseCompare(t, expr)
		if err != nil {
			return nil, err
		}
		and.Predicates = append(and.Predicates, c)
	}
	if len(and.Predicates) == 1 {
		return and.Predicates[0], nil
	}
	return and, nil
}

func parseCompare(t Table, expr string) (Compare, error) {
	i, op := -1, Op("")
	for _, candidate := range operators {
		if j := strings.Index(expr, string(candidate)); j > 0 && (i < 0 || j < i) {
			i, op = j, candidate
		}
	}
	if i < 0 {
		return Compare{}, fmt.Errorf("filter %q: want column<op>value with op one of = != < <= > >=", expr)
	}
	name := strings.TrimSpace(expr[:i])
	raw := strings.TrimSpace(expr[i+len(op):])

	col, ok := t.Column(name)
	if !ok {
		return Compare{}, &QueryError{Table: t.Name, Field: name, Message: fmt.Sprintf("unknown column (have %s)", strings.Join(t.ColumnNames(), ", "))}
	}
	c := Compare{Field: name, Op: op, Value: ir.String(raw)}
	if col.Kind == KindInteger {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Compare{}, &QueryError{Table: t.Name, Field: name, Message: fmt.Sprintf("%q is not an integer", raw)}
		}
		c.Value = ir.Int(n)
	}
	if err := validateCompare(t, c); err != nil {
		return Compare{}, err
	}
	return c, nil
}
