// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/queryir"
)

// SQLCompiler compiles queries over a fixed set of tables.
//
// Every query is ordered by its table's key, so results are deterministic.
// Values are always parameters, never interpolated.
type SQLCompiler struct {
	tables []queryir.Table
}

// NewSQLCompiler returns a compiler for queries over tables.
func NewSQLCompiler(tables ...queryir.Table) *SQLCompiler {
	return &SQLCompiler{tables: tables}
}

// Compile validates q and converts it to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q, c.tables...); err != nil {
		return "", nil, err
	}
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) table(name string) queryir.Table {
	for _, t := range c.tables {
		if t.Name == name {
			return t
		}
	}
	return queryir.Table{}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	t := c.table(q.From)
	columns := q.Columns
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}

	var where string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC",
		strings.Join(columns, ", "), t.Name, where, t.Key)
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// compilePredicate compiles p to a WHERE fragment. Text comparisons use
// COLLATE BINARY so they do not depend on the connection's collation.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return compileCompare(pred)
	case *queryir.Compare:
		return compileCompare(*pred)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileCompare(cmp queryir.Compare) (string, []any, error) {
	param, err := irValueToParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", cmp.Field, err)
	}
	op := string(cmp.Op)
	if cmp.Op == queryir.OpNe {
		op = "<>"
	}
	sql := fmt.Sprintf("%s %s ?", cmp.Field, op)
	if _, ok := param.(string); ok {
		sql += " COLLATE BINARY"
	}
	return sql, []any{param}, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts an ir.Value to a SQL parameter.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
