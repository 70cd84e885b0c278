package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldop/internal/queryir"
	"github.com/roach88/fieldop/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Runs     bool   // list run log rows
	Operator string   // restrict listed runs to one operator
	Where    []string // run filters: column<op>value
	Kernels  bool   // list stored kernels
}

// KernelInfo describes a stored kernel without its program.
type KernelInfo struct {
	Hash          string `json:"hash"`
	Name          string `json:"name"`
	IRVersion     string `json:"ir_version"`
	EngineVersion string `json:"engine_version"`
	Seq           int64  `json:"seq"`
}

// InspectResult is the inspect command's output.
type InspectResult struct {
	Summary store.Summary `json:"summary"`
	Kernels []KernelInfo  `json:"kernels,omitempty"`
	Runs    []store.Run   `json:"runs,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the kernels and run log in a database",
		Long: `Summarize the kernels and run log recorded in a database.

Shows kernel and run counts and per-operator totals. --runs lists the run
log in sequence order; --operator and --where filter it. A filter is
column<op>value with op one of = != < <= > >=, over the columns seq,
run_id, operator, backend, kernel_hash, status, error and duration_us.
--kernels lists the stored kernels.

Examples:
  fieldop inspect --db ./fieldop.db
  fieldop inspect --db ./fieldop.db --runs --operator laplace
  fieldop inspect --db ./fieldop.db --where status=failed --where duration_us>1000
  fieldop inspect --db ./fieldop.db --kernels --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list run log rows")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "only list runs of this operator")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter runs by column<op>value (repeatable)")
	cmd.Flags().BoolVar(&opts.Kernels, "kernels", false, "list stored kernels")

	return cmd
}

func runInspect(ctx context.Context, opts *InspectOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "inspect requires --db")
	}
	// Opening would create a missing database.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var result InspectResult
	if result.Summary, err = st.Summarize(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize database", err)
	}
	if opts.Kernels {
		kernels, err := st.ReadAllKernels(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read kernels", err)
		}
		result.Kernels = make([]KernelInfo, len(kernels))
		for i, k := range kernels {
			result.Kernels[i] = KernelInfo{
				Hash:          k.Hash,
				Name:          k.Name,
				IRVersion:     k.IRVersion,
				EngineVersion: k.EngineVersion,
				Seq:           k.Seq,
			}
		}
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.listRuns() {
		exprs := opts.Where
		if opts.Operator != "" {
			exprs = append([]string{"operator=" + opts.Operator}, exprs...)
		}
		filter, err := queryir.ParseFilter(store.RunsTable, exprs)
		if err != nil {
			return outputError(formatter, ExitCommandError, CLIError{Code: ErrCodeQuery, Message: err.Error()})
		}
		if result.Runs, err = st.QueryRuns(ctx, filter); err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputInspectText(formatter, result, opts)
	return nil
}

func (o *InspectOptions) listRuns() bool {
	return o.Runs || o.Operator != "" || len(o.Where) > 0
}

func outputInspectText(formatter *OutputFormatter, result InspectResult, opts *InspectOptions) {
	w := formatter.Writer
	sum := result.Summary
	fmt.Fprintf(w, "Database: %s\n", opts.Database)
	fmt.Fprintf(w, "  Kernels: %d\n", sum.Kernels)
	fmt.Fprintf(w, "  Runs:    %d (%d failed)\n", sum.Runs, sum.Failed)

	if len(sum.Operators) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "OPERATOR\tRUNS\tFAILED\tLAST SEQ\tTOTAL µs")
		for _, o := range sum.Operators {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", o.Operator, o.Runs, o.Failed, o.LastSeq, o.TotalMicros)
		}
		tw.Flush()
	}

	if opts.Kernels {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Kernels (%d):\n", len(result.Kernels))
		for _, k := range result.Kernels {
			fmt.Fprintf(w, "  [%d] %s %s\n", k.Seq, k.Name, k.Hash)
		}
	}

	if opts.listRuns() {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Runs (%d):\n", len(result.Runs))
		for _, r := range result.Runs {
			line := fmt.Sprintf("  [%d] %s %s %s %s %dµs", r.Seq, r.RunID, r.Operator, r.Backend, r.Status, r.DurationMicros)
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Fprintln(w, line)
		}
	}
}
