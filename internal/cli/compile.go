package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/manifest"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Operator string // compile only this operator
}

// CompiledKernel describes one compiled operator.
type CompiledKernel struct {
	Operator string   `json:"operator"`
	Hash     string   `json:"hash"`
	Params   []string `json:"params"`
	Result   string   `json:"result"`
	Offsets  []string `json:"offsets,omitempty"`
	Deps     []string `json:"deps,omitempty"`
}

// CompilationResult holds the compiled kernels, ordered by operator name.
type CompilationResult struct {
	Kernels   []CompiledKernel `json:"kernels"`
	Persisted bool             `json:"persisted"`
	Output    string           `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <manifest-dir>",
		Short: "Translate operators to IR and compile their kernels",
		Long: `Translate every operator of a manifest to canonical IR and compile it.

Each kernel is identified by the hash of its canonical IR. With --db the
programs are persisted so later runs can load them by hash; with --output
the canonical IR of every program is written as JSON.

Examples:
  fieldop compile ./mesh
  fieldop compile ./mesh --operator laplace --output laplace.json
  fieldop compile ./mesh --db ./fieldop.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical IR to this file")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "compile only this operator")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	m, err := manifest.Load(dir, manifest.LoadModeCollectAll)
	if err != nil {
		return outputErrors(formatter, ExitCommandError, "Compilation failed", manifest.Errors(err))
	}
	formatter.Progressf("Found %d CUE file(s) in %s", m.FileCount, dir)

	names := make([]string, 0, len(m.Operators))
	for name := range m.Operators {
		if opts.Operator == "" || name == opts.Operator {
			names = append(names, name)
		}
	}
	if len(names) == 0 && opts.Operator != "" {
		return outputError(formatter, ExitCommandError, CLIError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("manifest has no operator %q", opts.Operator),
		})
	}
	sort.Strings(names)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	pl := pipeline(st, opts.logger(formatter.Diagnostics()))
	cache := compiler.NewCache()

	result := CompilationResult{Kernels: []CompiledKernel{}, Persisted: st != nil}
	programs := make(map[string]*ir.Program, len(names))
	var errs []error
	for _, name := range names {
		formatter.Progressf("Compiling operator: %s", name)
		prog, err := cache.Translate(m.Operators[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		h, err := pl.Compile(ctx, prog)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		programs[name] = prog
		result.Kernels = append(result.Kernels, describeKernel(prog, h.Hash))
	}
	if len(errs) > 0 {
		return outputErrors(formatter, ExitCommandError, "Compilation failed", errs)
	}

	if opts.Output != "" {
		if err := writeIRToFile(programs, opts.Output); err != nil {
			return outputError(formatter, ExitCommandError, CLIError{
				Code:    ErrCodeWriteFailed,
				Message: fmt.Sprintf("writing output file: %v", err),
			})
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result)
}

func describeKernel(p *ir.Program, hash string) CompiledKernel {
	k := CompiledKernel{
		Operator: p.Name,
		Hash:     hash,
		Params:   make([]string, len(p.Params)),
		Result:   p.Result.String(),
	}
	for i, param := range p.Params {
		k.Params[i] = param.Name + " " + param.T.String()
	}
	for _, o := range p.Offsets {
		k.Offsets = append(k.Offsets, o.Name)
	}
	for name := range p.Deps {
		k.Deps = append(k.Deps, name)
	}
	sort.Strings(k.Deps)
	return k
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d kernel(s)\n\n", len(result.Kernels))
	for _, k := range result.Kernels {
		fmt.Fprintf(w, "  %s(%s) %s\n", k.Operator, strings.Join(k.Params, ", "), k.Result)
		fmt.Fprintf(w, "    hash: %s\n", k.Hash)
		if len(k.Offsets) > 0 {
			fmt.Fprintf(w, "    offsets: %s\n", strings.Join(k.Offsets, ", "))
		}
		if len(k.Deps) > 0 {
			fmt.Fprintf(w, "    calls: %s\n", strings.Join(k.Deps, ", "))
		}
	}
	if result.Persisted {
		fmt.Fprintln(w, "\nKernels persisted to the database.")
	}
	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote canonical IR to %s\n", result.Output)
	}
	return nil
}

// writeIRToFile writes the programs, keyed by operator name, as indented
// JSON. Each program uses its canonical encoding.
func writeIRToFile(programs map[string]*ir.Program, filename string) error {
	data, err := json.MarshalIndent(programs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
