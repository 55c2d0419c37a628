package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/testutil"
)

const fillWorkflow = `name: fill
steps:
  - process: add
    args: {item: a}
  - process: add
    args: {item: b}
  - process: add
    args: {item: c}
`

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// scaffoldProject runs init into a fresh directory and returns it.
func scaffoldProject(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "proj")
	_, _, err := execute(t, "init", dir)
	require.NoError(t, err)
	return dir
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")

	stdout, _, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "created pop.cue")
	for _, f := range []string{"pop.cue", filepath.Join("workflows", "main.yaml"), ".env"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	_, _, err = execute(t, "init", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not empty")
}

func TestInitCurrentDirectoryKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pop.cue", "// mine\n")
	t.Chdir(dir)

	res, err := Scaffold(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"pop.cue"}, res.Skipped)
	assert.Len(t, res.Created, 2)

	data, err := os.ReadFile(filepath.Join(dir, "pop.cue"))
	require.NoError(t, err)
	assert.Equal(t, "// mine\n", string(data))
}

func TestValidateGolden(t *testing.T) {
	spec := writeFile(t, t.TempDir(), "inventory.cue", testutil.InventorySpec)

	stdout, _, err := execute(t, "validate", spec)
	require.NoError(t, err)
	golden(t).Assert(t, "validate", []byte(stdout))
}

func TestValidateJSON(t *testing.T) {
	spec := writeFile(t, t.TempDir(), "inventory.cue", testutil.InventorySpec)

	stdout, _, err := execute(t, "--format", "json", "validate", spec)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   ValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Fields, 2)
	require.Len(t, resp.Data.Processes, 2)
	assert.Equal(t, []string{"FULL"}, resp.Data.Processes[0].Errors)
}

func TestValidateInvalidSpec(t *testing.T) {
	spec := writeFile(t, t.TempDir(), "bad.cue", `scope: global: counter: {kind: "float"}`)

	stdout, _, err := execute(t, "validate", spec)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E010]")
}

func TestRunScaffoldGolden(t *testing.T) {
	sequentialIDs(t)
	dir := scaffoldProject(t)

	stdout, _, err := execute(t, "run", filepath.Join(dir, "pop.cue"), filepath.Join(dir, "workflows", "main.yaml"))
	require.NoError(t, err)
	golden(t).Assert(t, "run_scaffold", []byte(stdout))
}

func TestRunJSON(t *testing.T) {
	dir := scaffoldProject(t)

	stdout, _, err := execute(t, "--format", "json", "run", filepath.Join(dir, "pop.cue"), filepath.Join(dir, "workflows", "main.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Workflow struct {
				Name  string           `json:"name"`
				Steps []map[string]any `json:"steps"`
			} `json:"workflow"`
			State map[string]map[string]any `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "main", resp.Data.Workflow.Name)
	assert.Len(t, resp.Data.Workflow.Steps, 2)
	assert.Equal(t, float64(2), resp.Data.State["global"]["greetings"])
}

func TestRunStepFailure(t *testing.T) {
	dir := t.TempDir()
	spec := writeFile(t, dir, "inventory.cue", testutil.InventorySpec)
	wf := writeFile(t, dir, "fill.yaml", fillWorkflow)

	stdout, _, err := execute(t, "run", spec, wf)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "[2] add error FULL")
	assert.Contains(t, stdout, `state: {"domain":{"items":["a","b"]},"global":{"counter":2}}`)
	assert.Contains(t, stdout, "Error [E021]")
}

func TestRunExpectationFailure(t *testing.T) {
	dir := scaffoldProject(t)
	wf := writeFile(t, dir, "once.yaml", "name: once\nsteps: [hello]\nexpect:\n  global.greetings: 5\n")

	stdout, _, err := execute(t, "run", filepath.Join(dir, "pop.cue"), wf)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E022]")
	assert.Contains(t, stdout, "want 5, got 1")
}

func TestRunMissingWorkflow(t *testing.T) {
	dir := scaffoldProject(t)

	_, _, err := execute(t, "run", filepath.Join(dir, "pop.cue"), filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvoke(t *testing.T) {
	dir := scaffoldProject(t)

	stdout, _, err := execute(t, "invoke", filepath.Join(dir, "pop.cue"), "hello", "--args", `{"name":"ada"}`)
	require.NoError(t, err)
	assert.Equal(t, "result: 1\n"+`state: {"domain":{"log":["hello, ada"]},"global":{"greetings":1}}`+"\n", stdout)
}

func TestInvokeErrors(t *testing.T) {
	spec := writeFile(t, t.TempDir(), "inventory.cue", testutil.InventorySpec)

	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{
			name:     "args not an object",
			args:     []string{"invoke", spec, "add", "--args", "[1]"},
			exitCode: ExitCommandError,
			contains: "invalid --args",
		},
		{
			name:     "unknown process",
			args:     []string{"invoke", spec, "nope"},
			exitCode: ExitFailure,
			contains: "UNKNOWN_PROCESS",
		},
		{
			name:     "strict mode write-only process",
			args:     []string{"invoke", spec, "reset", "--strict"},
			exitCode: ExitSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			if tt.contains != "" {
				assert.Contains(t, stdout, tt.contains)
			}
		})
	}
}

func TestTraceGolden(t *testing.T) {
	sequentialIDs(t)
	dir := scaffoldProject(t)
	db := filepath.Join(t.TempDir(), "journal.db")

	_, _, err := execute(t, "run", filepath.Join(dir, "pop.cue"), filepath.Join(dir, "workflows", "main.yaml"), "--journal", db)
	require.NoError(t, err)

	stdout, _, err := execute(t, "trace", "--journal", db, "--entries")
	require.NoError(t, err)
	golden(t).Assert(t, "trace_entries", []byte(stdout))
}

func TestTraceFilters(t *testing.T) {
	sequentialIDs(t)
	dir := t.TempDir()
	spec := writeFile(t, dir, "inventory.cue", testutil.InventorySpec)
	wf := writeFile(t, dir, "fill.yaml", fillWorkflow)
	db := filepath.Join(dir, "journal.db")
	t.Setenv("POP_JOURNAL_PATH", db)

	_, _, err := execute(t, "run", spec, wf)
	require.Error(t, err, "third add is rejected")

	t.Run("rolled back only", func(t *testing.T) {
		stdout, _, err := execute(t, "trace", "--status", "rolled_back")
		require.NoError(t, err)
		assert.Contains(t, stdout, "tx-3")
		assert.Contains(t, stdout, "code=FULL")
		assert.NotContains(t, stdout, "tx-1")
	})

	t.Run("json with limit", func(t *testing.T) {
		stdout, _, err := execute(t, "--format", "json", "trace", "--limit", "2")
		require.NoError(t, err)

		var resp struct {
			Data []TraceTx `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "tx-1", resp.Data[0].ID)
		assert.Equal(t, "committed", resp.Data[1].Status)
		assert.NotEmpty(t, resp.Data[0].StateHash)
	})

	t.Run("no match", func(t *testing.T) {
		stdout, _, err := execute(t, "trace", "--process", "reset")
		require.NoError(t, err)
		assert.Equal(t, "no transactions\n", stdout)
	})
}

func TestTraceErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no journal", []string{"trace"}},
		{"missing file", []string{"trace", "--journal", filepath.Join(t.TempDir(), "missing.db")}},
		{"bad status", []string{"trace", "--journal", "x.db", "--status", "pending"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inventory.cue", testutil.InventorySpec)
	writeFile(t, dir, "scenarios/pass.yaml", `name: pass
spec: ../inventory.cue
flow:
  - process: add
    args: {item: a}
    expect: {result: 1}
assertions:
  - type: final_state
    path: global.counter
    expect: 1
`)

	stdout, _, err := execute(t, "test", filepath.Join(dir, "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, "PASS pass\n1 passed, 0 failed\n", stdout)

	writeFile(t, dir, "scenarios/fail.yaml", `name: fail
spec: ../inventory.cue
flow:
  - process: add
    args: {item: a}
    expect: {code: FULL}
`)

	stdout, _, err = execute(t, "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "FAIL fail\n    flow[0] (add): expected FULL, process succeeded\n")
	assert.Contains(t, stdout, "1 passed, 1 failed\n")
}
