package store

import (
	"context"
	"fmt"
)

// OperatorSummary aggregates the run log of one operator.
type OperatorSummary struct {
	Operator    string `json:"operator"`
	Runs        int    `json:"runs"`
	Failed      int    `json:"failed"`
	LastSeq     int64  `json:"last_seq"`
	TotalMicros int64  `json:"total_micros"`
}

// Summary describes the contents of a store.
type Summary struct {
	Kernels   int               `json:"kernels"`
	Runs      int               `json:"runs"`
	Failed    int               `json:"failed"`
	Operators []OperatorSummary `json:"operators"` // ordered by operator name
}

// Summarize counts kernels and aggregates the run log per operator.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kernels`).Scan(&sum.Kernels); err != nil {
		return sum, fmt.Errorf("summarize: count kernels: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT operator,
		       COUNT(*),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       MAX(seq),
		       SUM(duration_us)
		FROM runs
		GROUP BY operator
		ORDER BY operator COLLATE BINARY ASC
	`)
	if err != nil {
		return sum, fmt.Errorf("summarize: query runs: %w", err)
	}
	defer rows.Close()

	sum.Operators = []OperatorSummary{}
	for rows.Next() {
		var o OperatorSummary
		if err := rows.Scan(&o.Operator, &o.Runs, &o.Failed, &o.LastSeq, &o.TotalMicros); err != nil {
			return sum, fmt.Errorf("summarize: scan: %w", err)
		}
		sum.Runs += o.Runs
		sum.Failed += o.Failed
		sum.Operators = append(sum.Operators, o)
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("summarize: iterate: %w", err)
	}
	return sum, nil
}

// LastRunSeq returns the highest seq in the run log, or 0 if it is empty.
func (s *Store) LastRunSeq(ctx context.Context) (int64, error) {
	var last int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&last); err != nil {
		return 0, fmt.Errorf("last run seq: %w", err)
	}
	return last, nil
}
