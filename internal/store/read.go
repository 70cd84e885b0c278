package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/queryir"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

// ErrHashMismatch is returned when a stored program no longer hashes to
// its key.
var ErrHashMismatch = errors.New("stored program does not match its hash")

// ReadKernel returns the program stored under hash. It implements
// kernel.ArtifactStore.
func (s *Store) ReadKernel(ctx context.Context, hash string) (*ir.Program, error) {
	k, err := s.ReadKernelRecord(ctx, hash)
	if err != nil {
		return nil, err
	}
	return k.Program, nil
}

// ReadKernelRecord returns the full kernel row for hash. The program is
// re-hashed on read.
func (s *Store) ReadKernelRecord(ctx context.Context, hash string) (Kernel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, name, program, ir_version, engine_version, seq
		FROM kernels
		WHERE hash = ?
	`, hash)

	k, err := scanKernel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Kernel{}, fmt.Errorf("read kernel %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return Kernel{}, fmt.Errorf("read kernel %s: %w", hash, err)
	}
	return k, nil
}

// ReadAllKernels returns every stored kernel ordered by seq ASC, hash ASC.
// Returns an empty slice (not nil) when the store holds none.
func (s *Store) ReadAllKernels(ctx context.Context) ([]Kernel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, program, ir_version, engine_version, seq
		FROM kernels
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query kernels: %w", err)
	}
	defer rows.Close()

	kernels := []Kernel{}
	for rows.Next() {
		k, err := scanKernel(rows)
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kernels: %w", err)
	}
	return kernels, nil
}

// ReadRuns returns the runs of operator (all runs when operator is empty)
// ordered by seq ASC.
func (s *Store) ReadRuns(ctx context.Context, operator string) ([]Run, error) {
	var filter queryir.Predicate
	if operator != "" {
		filter = queryir.Eq("operator", ir.String(operator))
	}
	return s.QueryRuns(ctx, filter)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanKernel(sc scanner) (Kernel, error) {
	var (
		k       Kernel
		program string
	)
	if err := sc.Scan(&k.Hash, &k.Name, &program, &k.IRVersion, &k.EngineVersion, &k.Seq); err != nil {
		return Kernel{}, err
	}
	if err := ir.CheckIRVersion(k.IRVersion); err != nil {
		return Kernel{}, fmt.Errorf("kernel %s: %w", k.Hash, err)
	}
	p, err := unmarshalProgram(program)
	if err != nil {
		return Kernel{}, fmt.Errorf("kernel %s: %w", k.Hash, err)
	}
	got, err := ir.ProgramHash(p)
	if err != nil {
		return Kernel{}, fmt.Errorf("kernel %s: %w", k.Hash, err)
	}
	if got != k.Hash {
		return Kernel{}, fmt.Errorf("kernel %s: %w (got %s)", k.Hash, ErrHashMismatch, got)
	}
	k.Program = p
	return k, nil
}
