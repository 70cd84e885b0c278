package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/fieldop/internal/ir"
)

var runs = Table{
	Name: "runs",
	Key:  "seq",
	Columns: []Column{
		{Name: "seq", Kind: KindInteger},
		{Name: "operator", Kind: KindText},
		{Name: "status", Kind: KindText},
		{Name: "duration_us", Kind: KindInteger},
	},
}

func TestValidate_ValidQuery(t *testing.T) {
	q := Select{
		From:    "runs",
		Columns: []string{"seq", "operator"},
		Filter: And{Predicates: []Predicate{
			Eq("operator", ir.String("lap")),
			Compare{Field: "duration_us", Op: OpGe, Value: ir.Int(10)},
		}},
	}
	assert.NoError(t, Validate(q, runs))
	assert.NoError(t, Validate(&q, runs), "pointer variants are accepted")
}

func TestValidate_NilFilterAndEmptyAnd(t *testing.T) {
	assert.NoError(t, Validate(Select{From: "runs"}, runs))
	assert.NoError(t, Validate(Select{From: "runs", Filter: And{}}, runs))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		message string
	}{
		{"nil query", nil, "nil query"},
		{"unknown table", Select{From: "flows"}, "query flows: unknown table"},
		{"unknown column", Select{From: "runs", Columns: []string{"program"}}, "query runs.program: unknown column"},
		{"negative limit", Select{From: "runs", Limit: -1}, "negative limit -1"},
		{"null", Select{From: "runs", Filter: Eq("status", ir.Null{})}, "compared to NULL"},
		{"kind mismatch", Select{From: "runs", Filter: Eq("seq", ir.String("1"))}, "text value for integer column"},
		{"ordered text", Select{From: "runs", Filter: Compare{Field: "status", Op: OpLt, Value: ir.String("ok")}}, "< needs an integer column"},
		{"unknown op", Select{From: "runs", Filter: Compare{Field: "seq", Op: "~", Value: ir.Int(1)}}, `unknown operator "~"`},
		{"array value", Select{From: "runs", Filter: Eq("status", ir.Array{})}, "unsupported value ir.Array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query, runs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	q := Select{
		From:    "runs",
		Columns: []string{"nope"},
		Filter: And{Predicates: []Predicate{
			Eq("missing", ir.String("x")),
			&And{Predicates: []Predicate{Eq("seq", ir.Bool(true)), Eq("status", ir.Int(1))}},
		}},
	}
	err := Validate(q, runs)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3, "bool is stored as an integer")
}

func TestParseFilter(t *testing.T) {
	p, err := ParseFilter(runs, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseFilter(runs, []string{"status=failed"})
	require.NoError(t, err)
	assert.Equal(t, Eq("status", ir.String("failed")), p)

	p, err = ParseFilter(runs, []string{"operator != lap", "duration_us>=100", "seq<3"})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Compare{Field: "operator", Op: OpNe, Value: ir.String("lap")},
		Compare{Field: "duration_us", Op: OpGe, Value: ir.Int(100)},
		Compare{Field: "seq", Op: OpLt, Value: ir.Int(3)},
	}}, p)

	p, err = ParseFilter(runs, []string{"status=a<b"})
	require.NoError(t, err)
	assert.Equal(t, Eq("status", ir.String("a<b")), p, "the first operator splits")
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		message string
	}{
		{"status", "want column<op>value"},
		{"=ok", "want column<op>value"},
		{"program=x", "unknown column (have seq, operator, status, duration_us)"},
		{"seq=one", `"one" is not an integer`},
		{"status>ok", "> needs an integer column"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseFilter(runs, []string{tt.expr})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestTable_Column(t *testing.T) {
	c, ok := runs.Column("status")
	require.True(t, ok)
	assert.Equal(t, KindText, c.Kind)
	_, ok = runs.Column("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"seq", "operator", "status", "duration_us"}, runs.ColumnNames())
}
