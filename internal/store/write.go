package store

import (
	"context"
	"fmt"

	"github.com/roach88/fieldop/internal/ir"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Kernel is a stored program.
type Kernel struct {
	Hash          string
	Name          string
	Program       *ir.Program
	IRVersion     string
	EngineVersion string
	Seq           int64
}

// Run is one outer operator call.
type Run struct {
	Seq            int64  `json:"seq"`
	RunID          string `json:"run_id"`
	Operator       string `json:"operator"`
	Backend        string `json:"backend"`
	KernelHash     string `json:"kernel_hash,omitempty"` // empty for embedded runs
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	DurationMicros int64  `json:"duration_micros"`
}

// WriteKernel stores p under its program hash and returns the hash.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency - storing the same
// program twice keeps the first row.
func (s *Store) WriteKernel(ctx context.Context, p *ir.Program) (string, error) {
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return "", fmt.Errorf("write kernel: %w", err)
	}
	program, err := marshalProgram(p)
	if err != nil {
		return "", fmt.Errorf("write kernel: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kernels
		(hash, name, program, ir_version, engine_version, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM kernels))
		ON CONFLICT(hash) DO NOTHING
	`,
		hash,
		p.Name,
		program,
		ir.IRVersion,
		ir.EngineVersion,
	)
	if err != nil {
		return "", fmt.Errorf("write kernel: %w", err)
	}
	return hash, nil
}

// WriteRun appends a run record and returns its seq. Uses
// ON CONFLICT(run_id) DO NOTHING - rewriting a run returns the seq of the
// existing row.
func (s *Store) WriteRun(ctx context.Context, r Run) (int64, error) {
	if r.Status != StatusOK && r.Status != StatusFailed {
		return 0, fmt.Errorf("write run: invalid status %q", r.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, operator, backend, kernel_hash, status, error, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.RunID,
		r.Operator,
		r.Backend,
		r.KernelHash,
		r.Status,
		r.Error,
		r.DurationMicros,
	)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT seq FROM runs WHERE run_id = ?`, r.RunID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: select seq: %w", err)
	}
	return seq, nil
}
