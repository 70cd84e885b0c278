package store

import (
	"context"
	"fmt"

	"github.com/roach88/fieldop/internal/queryir"
	"github.com/roach88/fieldop/internal/querysql"
)

// RunsTable is the queryable schema of the run log.
var RunsTable = queryir.Table{
	Name: "runs",
	Key:  "seq",
	Columns: []queryir.Column{
		{Name: "seq", Kind: queryir.KindInteger},
		{Name: "run_id", Kind: queryir.KindText},
		{Name: "operator", Kind: queryir.KindText},
		{Name: "backend", Kind: queryir.KindText},
		{Name: "kernel_hash", Kind: queryir.KindText},
		{Name: "status", Kind: queryir.KindText},
		{Name: "error", Kind: queryir.KindText},
		{Name: "duration_us", Kind: queryir.KindInteger},
	},
}

var runQueries = querysql.NewSQLCompiler(RunsTable)

// QueryRuns returns the runs matching filter (every run when filter is
// nil) ordered by seq ASC. Filters are built with queryir and checked
// against RunsTable.
func (s *Store) QueryRuns(ctx context.Context, filter queryir.Predicate) ([]Run, error) {
	query, params, err := runQueries.Compile(queryir.Select{
		From:    RunsTable.Name,
		Columns: RunsTable.ColumnNames(),
		Filter:  filter,
	})
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Seq, &r.RunID, &r.Operator, &r.Backend, &r.KernelHash, &r.Status, &r.Error, &r.DurationMicros); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
