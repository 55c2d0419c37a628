package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/value"
	"github.com/roach88/pop/internal/workflow"
)

// RunResult is the run command's report.
type RunResult struct {
	Workflow *workflow.Result `json:"workflow"`
	State    value.Map        `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags       engineFlags
		stepTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <spec> <workflow.yaml>",
		Short: "Execute a workflow against a spec",
		Long: `Compile the spec, register its processes and run the workflow's steps
in order. Each step is one process transaction; parallel groups run
concurrently and retry on commit conflicts.

Prints each step's outcome followed by the final state as canonical JSON.
Exits 1 when a step fails or an expectation does not hold.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)

			wf, err := workflow.Load(args[1])
			if err != nil {
				return out.fail(ExitCommandError, ErrCodeWorkflow, "workflow invalid", err)
			}

			s, err := openSession(rootOpts, cmd, &flags, args[0])
			if err != nil {
				return out.report(ErrCodeCompile, err)
			}
			defer s.Close()

			timeout := rootOpts.Config.StepTimeout
			if cmd.Flags().Changed("step-timeout") {
				timeout = stepTimeout
			}
			out.VerboseLog("running workflow %s (%d steps)", wf.Name, len(wf.Steps))

			res, runErr := workflow.Execute(cmd.Context(), s.engine, wf,
				workflow.WithLogger(s.logger),
				workflow.WithStepTimeout(timeout),
			)
			report := RunResult{Workflow: res, State: s.engine.Snapshot()}

			if runErr != nil {
				code := ErrCodeStep
				var ee *workflow.ExpectationError
				if errors.As(runErr, &ee) {
					code = ErrCodeExpectation
				}
				if out.JSON() {
					_ = out.Error(code, runErr.Error(), report)
				} else {
					printRun(out, report)
					_ = out.Error(code, runErr.Error(), errorDetails(runErr))
				}
				return WrapExitError(ExitFailure, "workflow failed", runErr)
			}

			if out.JSON() {
				return out.Success(report)
			}
			printRun(out, report)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&stepTimeout, "step-timeout", 0, "bound each step (overrides POP_STEP_TIMEOUT, 0 disables)")

	return cmd
}

func printRun(out *OutputFormatter, r RunResult) {
	if r.Workflow != nil {
		out.Printf("workflow %s\n", r.Workflow.Name)
		for _, sr := range r.Workflow.Steps {
			printStep(out, sr, "  ")
		}
	}
	out.Printf("state: %s\n", value.MustCanonical(r.State))
}

func printStep(out *OutputFormatter, sr workflow.StepResult, indent string) {
	if len(sr.Parallel) > 0 {
		out.Printf("%s[%d] parallel\n", indent, sr.Index)
		for _, branch := range sr.Parallel {
			printStep(out, branch, indent+"  ")
		}
		return
	}

	line := fmt.Sprintf("%s[%d] %s", indent, sr.Index, sr.Process)
	switch {
	case sr.ErrorCode != "":
		line += " error " + sr.ErrorCode
	case sr.Output != nil:
		line += " -> " + value.MustCanonical(sr.Output)
	default:
		line += " ok"
	}
	if sr.Attempts > 1 {
		line += fmt.Sprintf(" (attempts=%d)", sr.Attempts)
	}
	out.Printf("%s\n", line)
}
