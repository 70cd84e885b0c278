package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldop/internal/engine"
	"github.com/roach88/fieldop/internal/harness"
	"github.com/roach88/fieldop/internal/manifest"
	"github.com/roach88/fieldop/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// IDs allows overriding the run ID generator (for testing).
	// If nil, defaults to engine.UUIDv7Generator.
	IDs engine.RunIDGenerator

	// backendSet is true when --backend was given explicitly, which then
	// overrides the backends manifest runs name.
	backendSet bool
}

// RunResult is the outcome of one manifest run.
type RunResult struct {
	Run      string           `json:"run"`
	Operator string           `json:"operator"`
	Backend  string           `json:"backend"`
	Status   string           `json:"status"`
	Error    string           `json:"error,omitempty"`
	Outputs  []harness.Output `json:"outputs,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest-dir> [run...]",
		Short: "Execute manifest runs",
		Long: `Execute the runs a manifest declares and print their results.

Without run names every run executes, in name order. Each run is an outer
call: its offset provider is installed for the call and its out field is
materialized. A run executes on the backend it names, unless --backend is
given explicitly. With --db every call is appended to the run log.

Examples:
  fieldop run ./mesh
  fieldop run ./mesh sum_a --backend compiled
  fieldop run ./mesh --db ./fieldop.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.backendSet = cmd.Flags().Changed("backend")
			return runRuns(opts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runRuns(opts *RunOptions, dir string, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger(formatter.Diagnostics())

	m, err := manifest.Load(dir, manifest.LoadModeFailFast)
	if err != nil {
		return outputErrors(formatter, ExitCommandError, "Manifest invalid", manifest.Errors(err))
	}

	runs, err := selectRuns(m, names)
	if err != nil {
		return outputError(formatter, ExitCommandError, CLIError{Code: ErrCodeNotFound, Message: err.Error()})
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := engine.Config{
		Backend:  engine.Backend(opts.Backend),
		Logger:   logger,
		Pipeline: pipeline(st, logger),
		IDs:      opts.IDs,
	}
	if st != nil {
		cfg.Runs = st
		last, err := st.LastRunSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run log", err)
		}
		cfg.Clock = engine.ResumeClock(last)
	}
	rt, err := engine.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create runtime", err)
	}

	results := make([]RunResult, 0, len(runs))
	failed := 0
	for _, r := range runs {
		backend := rt.Backend()
		if r.Backend != "" && !opts.backendSet {
			backend = engine.Backend(r.Backend)
		}
		formatter.Progressf("Running %s (%s) on %s", r.Name, r.Operator.Name, backend)

		res := RunResult{Run: r.Name, Operator: r.Operator.Name, Backend: string(backend), Status: store.StatusOK}
		v, err := rt.Call(ctx, r.Operator, r.Args,
			engine.WithBackend(backend),
			engine.WithOut(r.NewOut()),
			engine.WithOffsetProvider(r.Offsets),
			engine.WithDomain(r.Domain),
		)
		if err != nil {
			res.Status = store.StatusFailed
			res.Error = err.Error()
			failed++
		} else {
			res.Outputs = harness.OutputsOf(v)
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}

	if err := outputRunResults(formatter, results); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", failed))
	}
	return nil
}

// selectRuns returns the named runs, or every run when names is empty.
func selectRuns(m *manifest.Manifest, names []string) ([]*manifest.Run, error) {
	if len(names) == 0 {
		if len(m.Runs) == 0 {
			return nil, fmt.Errorf("manifest declares no runs")
		}
		return m.Runs, nil
	}
	runs := make([]*manifest.Run, 0, len(names))
	for _, name := range names {
		r, ok := m.Run(name)
		if !ok {
			return nil, fmt.Errorf("manifest has no run %q", name)
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func outputRunResults(formatter *OutputFormatter, results []RunResult) error {
	if formatter.JSON() {
		return formatter.Success(results)
	}

	w := formatter.Writer
	for _, r := range results {
		if r.Status == store.StatusFailed {
			fmt.Fprintf(w, "✗ %s (%s, %s)\n", r.Run, r.Operator, r.Backend)
			fmt.Fprintf(w, "    Error: %s\n", r.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%s, %s)\n", r.Run, r.Operator, r.Backend)
		for i, o := range r.Outputs {
			fmt.Fprintf(w, "    [%d] %s%v %s: %s\n", i, strings.Join(o.Dims, "×"), o.Shape, o.DType, formatData(o))
		}
	}
	return nil
}

// formatData prints the data of o with missing elements as "_".
func formatData(o harness.Output) string {
	missing := make(map[int]bool, len(o.Missing))
	for _, i := range o.Missing {
		missing[i] = true
	}
	parts := make([]string, len(o.Data))
	for i, v := range o.Data {
		if missing[i] {
			parts[i] = "_"
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
