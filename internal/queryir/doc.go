// Package queryir is a small query representation for the run log and the
// kernel table.
//
// A Query selects columns of one table, filtered by a conjunction of
// column comparisons. Queries are built in code or parsed from
// "column<op>value" filter expressions, checked against a Table schema,
// and compiled to parameterized SQL by package querysql.
//
// Values are ir.Value literals: strings, integers and booleans. Floats are
// excluded for the same reason they are excluded from canonical IR, and
// NULL never appears because every stored column is NOT NULL.
//
// Query and Predicate are sealed interfaces: only types in this package
// implement them, so compilers can switch over them exhaustively.
package queryir
