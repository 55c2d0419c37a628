package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/harness"
)

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestReport summarizes a test run.
type TestReport struct {
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario|dir>...",
		Short: "Run conformance scenarios",
		Long: `Run scenario files against their specs. A directory runs every
.yaml scenario directly inside it.

Each scenario runs on a fresh engine with deterministic transaction IDs.
Exits 1 if any scenario fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)

			files, err := harness.Discover(args...)
			if err != nil {
				return out.fail(ExitCommandError, ErrCodeNotFound, "find scenarios", err)
			}

			logger := rootOpts.logger(cmd)
			report := TestReport{Scenarios: []ScenarioReport{}}
			for _, file := range files {
				sr := ScenarioReport{File: file}
				scenario, err := harness.LoadScenario(file)
				if err == nil {
					sr.Name = scenario.Name
					var res *harness.Result
					res, err = harness.Run(cmd.Context(), scenario, harness.WithLogger(logger))
					if err == nil {
						sr.Pass, sr.Errors = res.Pass, res.Errors
					}
				}
				if err != nil {
					sr.Errors = []string{err.Error()}
				}
				if sr.Pass {
					report.Passed++
				} else {
					report.Failed++
				}
				report.Scenarios = append(report.Scenarios, sr)
				out.VerboseLog("%s: pass=%t", file, sr.Pass)
			}

			if out.JSON() {
				if err := out.Success(report); err != nil {
					return err
				}
			} else {
				printTest(out, report)
			}
			if report.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", report.Failed, len(files)))
			}
			return nil
		},
	}
}

func printTest(out *OutputFormatter, r TestReport) {
	for _, s := range r.Scenarios {
		status := "PASS"
		if !s.Pass {
			status = "FAIL"
		}
		name := s.Name
		if name == "" {
			name = s.File
		}
		out.Printf("%s %s\n", status, name)
		for _, e := range s.Errors {
			out.Printf("    %s\n", e)
		}
	}
	out.Printf("%d passed, %d failed\n", r.Passed, r.Failed)
}
