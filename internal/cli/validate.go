package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/compiler"
	"github.com/roach88/pop/internal/path"
)

// FieldSummary describes one declared field.
type FieldSummary struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// ProcessSummary describes one declared process.
type ProcessSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Errors      []string `json:"errors,omitempty"`
	Steps       int      `json:"steps"`
}

// ValidateResult is the validate command's report.
type ValidateResult struct {
	Valid     bool                    `json:"valid"`
	Fields    []FieldSummary          `json:"fields"`
	Processes []ProcessSummary        `json:"processes"`
	Warnings  []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec>",
		Short: "Compile a spec and report its schema and processes",
		Long: `Compile a CUE spec (a .cue file or a package directory) and report
the declared scopes, fields and processes.

Run-step cycles are reported as warnings; they do not fail validation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			out.VerboseLog("compiling %s", args[0])

			spec, err := compiler.Load(args[0])
			if err != nil {
				return out.fail(ExitFailure, ErrCodeCompile, "spec invalid", err)
			}

			res := summarize(spec)
			if out.JSON() {
				return out.Success(res)
			}
			printValidate(out, res)
			return nil
		},
	}
}

func summarize(spec *compiler.Spec) ValidateResult {
	res := ValidateResult{
		Valid:     true,
		Fields:    []FieldSummary{},
		Processes: []ProcessSummary{},
		Warnings:  spec.Warnings,
	}
	for _, key := range spec.Schema.FieldKeys() {
		fs, _ := spec.Schema.Field(key.Scope, key.Field)
		res.Fields = append(res.Fields, FieldSummary{Path: key.String(), Kind: kindLabel(fs)})
	}
	for _, def := range spec.Processes {
		res.Processes = append(res.Processes, ProcessSummary{
			Name:        def.Name,
			Description: def.Description,
			Inputs:      nonNil(def.Inputs),
			Outputs:     nonNil(def.Outputs),
			Errors:      def.Errors,
			Steps:       len(def.Steps),
		})
	}
	return res
}

// kindLabel renders a field spec as kind or kind<elem>.
func kindLabel(fs path.FieldSpec) string {
	if fs.Elem == nil || !fs.Kind.IsContainer() {
		return string(fs.Kind)
	}
	return string(fs.Kind) + "<" + kindLabel(*fs.Elem) + ">"
}

func printValidate(out *OutputFormatter, res ValidateResult) {
	out.Printf("spec valid: %d fields, %d processes\n", len(res.Fields), len(res.Processes))
	out.Printf("\nfields:\n")
	for _, f := range res.Fields {
		out.Printf("  %-24s %s\n", f.Path, f.Kind)
	}
	out.Printf("\nprocesses:\n")
	for _, p := range res.Processes {
		out.Printf("  %s (%d steps)\n", p.Name, p.Steps)
		if p.Description != "" {
			out.Printf("    %s\n", p.Description)
		}
		out.Printf("    inputs:  %s\n", joinOrDash(p.Inputs))
		out.Printf("    outputs: %s\n", joinOrDash(p.Outputs))
		if len(p.Errors) > 0 {
			out.Printf("    errors:  %s\n", strings.Join(p.Errors, ", "))
		}
	}
	for _, w := range res.Warnings {
		out.Printf("\nwarning: %s\n", w.Message)
	}
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
