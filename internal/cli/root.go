package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldop/internal/engine"
	"github.com/roach88/fieldop/internal/kernel"
	"github.com/roach88/fieldop/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Backend  string // "embedded" | "compiled"
	Database string // optional SQLite path for kernels and the run log
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fieldop CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldop",
		Short: "fieldop - field operators over structured meshes",
		Long: `Define, compile and run field operators over dimension-tagged fields.

Operators and meshes are described by CUE manifests. Operators run either
embedded (interpreted) or as compiled kernels; both give the same results.`,
		SilenceErrors: true, // main prints the error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := engine.ParseBackend(opts.Backend); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", string(engine.Embedded), "default backend (embedded|compiled)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database for kernels and the run log")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// logger returns the command logger: text records to w, at Debug level
// when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens --db. It returns a nil store when no database is set.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.Database == "" {
		return nil, nil
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// pipeline returns a kernel pipeline that persists kernels to st when st
// is not nil.
func pipeline(st *store.Store, logger *slog.Logger) *kernel.Pipeline {
	opts := []kernel.PipelineOption{kernel.WithLogger(logger)}
	if st != nil {
		opts = append(opts, kernel.WithStore(st))
	}
	return kernel.NewPipeline(kernel.NewLocal(), opts...)
}
