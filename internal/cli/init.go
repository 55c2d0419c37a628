package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const scaffoldSpec = `scope: global: greetings: {kind: "int", default: 0}
scope: domain: log: {kind: "list", elem: {kind: "string"}}

process: hello: {
	description: "Append a greeting and count it."
	inputs:  ["global.greetings"]
	outputs: ["global.greetings", "domain.log"]
	steps: [
		{op: "append", path: "domain.log", expr: "\"hello, \" + (args.name ?? \"world\")"},
		{op: "set", path: "global.greetings", expr: "get(\"global.greetings\") + 1"},
	]
	result: "get(\"global.greetings\")"
}
`

const scaffoldWorkflow = `name: main
steps:
  - hello
  - process: hello
    args:
      name: pop
expect:
  global.greetings: 2
`

const scaffoldEnv = `POP_STRICT_MODE=false
POP_LOG_LEVEL=INFO
POP_METRICS_ENABLED=true
POP_JOURNAL_PATH=
`

type scaffoldFile struct {
	name    string
	content string
}

var scaffold = []scaffoldFile{
	{name: "pop.cue", content: scaffoldSpec},
	{name: filepath.Join("workflows", "main.yaml"), content: scaffoldWorkflow},
	{name: ".env", content: scaffoldEnv},
}

// InitResult lists what init wrote and skipped.
type InitResult struct {
	Dir     string   `json:"dir"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new pop project",
		Long: `Create a project directory holding a starter spec (pop.cue), a
workflow (workflows/main.yaml) and an .env file.

Use "." to scaffold into the current directory; existing files are kept.
Any other target must not exist yet or be empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			res, err := Scaffold(args[0])
			if err != nil {
				return out.fail(ExitCommandError, ErrCodeInit, "init failed", err)
			}
			if out.JSON() {
				return out.Success(res)
			}
			for _, f := range res.Created {
				out.Printf("created %s\n", f)
			}
			for _, f := range res.Skipped {
				out.Printf("skipped %s (exists)\n", f)
			}
			return nil
		},
	}
}

// Scaffold writes the starter project into name.
func Scaffold(name string) (*InitResult, error) {
	dir := name
	if name != "." {
		entries, err := os.ReadDir(dir)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		case len(entries) > 0:
			return nil, fmt.Errorf("directory %q is not empty", dir)
		}
	}

	res := &InitResult{Dir: dir, Created: []string{}, Skipped: []string{}}
	for _, f := range scaffold {
		target := filepath.Join(dir, f.name)
		if _, err := os.Stat(target); err == nil {
			res.Skipped = append(res.Skipped, f.name)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, []byte(f.content), 0o644); err != nil {
			return nil, err
		}
		res.Created = append(res.Created, f.name)
	}
	return res, nil
}
