package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/value"
)

// InvokeResult is the invoke command's report.
type InvokeResult struct {
	Process string      `json:"process"`
	Result  value.Value `json:"result"`
	State   value.Map   `json:"state"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags   engineFlags
		argsRaw string
	)

	cmd := &cobra.Command{
		Use:   "invoke <spec> <process>",
		Short: "Run a single process once",
		Long: `Compile the spec and run one process in a single transaction against
the spec's initial state. Prints the process result and the resulting
state as canonical JSON.

Example:
  pop invoke pop.cue hello --args '{"name": "ada"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)

			procArgs, err := parseArgs(argsRaw)
			if err != nil {
				return out.fail(ExitCommandError, ErrCodeGeneric, "invalid --args", err)
			}

			s, err := openSession(rootOpts, cmd, &flags, args[0])
			if err != nil {
				return out.report(ErrCodeCompile, err)
			}
			defer s.Close()

			raw, err := s.engine.Run(cmd.Context(), args[1], procArgs)
			if err != nil {
				return out.fail(ExitFailure, ErrCodeProcess, fmt.Sprintf("process %s failed", args[1]), err)
			}

			res := InvokeResult{Process: args[1], Result: value.Null{}, State: s.engine.Snapshot()}
			if raw != nil {
				if res.Result, err = value.FromAny(raw); err != nil {
					return out.fail(ExitFailure, ErrCodeProcess, "process result", err)
				}
			}

			if out.JSON() {
				return out.Success(res)
			}
			out.Printf("result: %s\n", value.MustCanonical(res.Result))
			out.Printf("state: %s\n", value.MustCanonical(res.State))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&argsRaw, "args", "{}", "process arguments as a JSON object")

	return cmd
}

func parseArgs(raw string) (value.Map, error) {
	v, err := value.Unmarshal([]byte(raw))
	if err != nil {
		return nil, err
	}
	m, ok := v.(value.Map)
	if !ok {
		return nil, fmt.Errorf("want a JSON object, got %s", value.KindOf(v))
	}
	return m, nil
}
