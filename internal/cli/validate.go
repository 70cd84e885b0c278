package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/manifest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool       `json:"valid"`
	Operators int        `json:"operators"`
	Runs      int        `json:"runs"`
	Errors    []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest-dir>",
		Short: "Validate a manifest without compiling kernels",
		Long: `Validate a CUE manifest and translate every operator to IR.

Reports every schema, reference and translation error with its position.
No kernels are compiled and nothing is written. Faster than compile for
development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	m, errs := ValidateManifestDir(dir)
	if m == nil {
		// Directory not found, no files: nothing to validate.
		var le *manifest.LoadError
		if len(errs) == 1 && errors.As(errs[0], &le) &&
			(le.Code == manifest.ErrCodeNotFound || le.Code == manifest.ErrCodeNoFiles) {
			return outputError(formatter, ExitCommandError, describeError(errs[0]))
		}
	} else {
		formatter.Progressf("Found %d CUE file(s) in %s", m.FileCount, dir)
	}

	if len(errs) > 0 {
		return outputErrors(formatter, ExitFailure, "Validation failed", errs)
	}

	result := ValidationResult{Valid: true, Operators: len(m.Operators), Runs: len(m.Runs)}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Manifest valid: %d operator(s), %d run(s)\n", result.Operators, result.Runs)
	return nil
}

// ValidateManifestDir loads the manifest in dir and translates and
// validates every operator. It returns all errors found; the manifest is
// nil when it could not be loaded at all.
func ValidateManifestDir(dir string) (*manifest.Manifest, []error) {
	m, err := manifest.Load(dir, manifest.LoadModeCollectAll)
	if err != nil {
		return m, manifest.Errors(err)
	}
	if len(m.Operators) == 0 {
		return m, []error{&manifest.LoadError{
			Code:    manifest.ErrCodeOperator,
			Message: "manifest defines no operators",
		}}
	}

	names := make([]string, 0, len(m.Operators))
	for name := range m.Operators {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		prog, err := compiler.Translate(m.Operators[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ve := range compiler.Validate(prog) {
			ve.Field = name + "." + ve.Field
			errs = append(errs, ve)
		}
	}
	return m, errs
}
