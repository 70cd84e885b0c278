package queryir

import "github.com/roach88/fieldop/internal/ir"

// Query is a query over one table.
// Implementations: Select.
type Query interface {
	queryNode()
}

// Predicate is a row filter.
// Implementations: Compare, And.
type Predicate interface {
	predicateNode()
}

// Select reads Columns of From, in the table's key order.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <key>
type Select struct {
	From    string    // table name
	Columns []string  // selected columns, in scan order; empty selects all
	Filter  Predicate // nil keeps every row
	Limit   int       // 0 means no limit
}

func (Select) queryNode() {}

// Op is a comparison operator.
type Op string

// Comparison operators. Ordered comparisons apply to integer columns.
const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// ordered reports whether op needs an ordered column.
func (op Op) ordered() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare is the predicate <field> <op> <value>.
type Compare struct {
	Field string
	Op    Op
	Value ir.Value // ir.String, ir.Int or ir.Bool
}

func (Compare) predicateNode() {}

// Eq returns the predicate field = v.
func Eq(field string, v ir.Value) Compare {
	return Compare{Field: field, Op: OpEq, Value: v}
}

// And holds when all of its predicates hold. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Kind is the storage class of a column.
type Kind string

const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
)

// Table describes a queryable table.
type Table struct {
	Name    string
	Key     string   // unique ordering column
	Columns []Column // in declaration order
}

// Column is a named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Column returns the column named name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
