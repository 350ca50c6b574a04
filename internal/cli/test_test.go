package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postsScenario = `
name: posts_refetch
description: "A write refetches the displayed list"
specs: [specs/posts.cue]
connected: true
seed:
  posts:
    - {id: 1, title: a, rank: 1}
steps:
  - register: posts
    expect: {key: posts, ids: ["1"], fetches: 1}
  - put: {collection: posts, record: {id: 2, title: b, rank: 2}}
    expect: {key: posts, ids: ["1", "2"], fetches: 2}
assertions:
  - type: trace_count
    event: fetch
    key: posts
    count: 2
`

// scenarioFixture lays out base/specs and base/scenarios and returns both dirs.
func scenarioFixture(t *testing.T, scenarios map[string]string) (string, string) {
	t.Helper()
	base := t.TempDir()
	writeSpecsDir(t, base, postsSpec)
	scenariosDir := filepath.Join(base, "scenarios")
	require.NoError(t, os.MkdirAll(scenariosDir, 0755))
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(scenariosDir, name), []byte(content), 0644))
	}
	return base, scenariosDir
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg")
}

func TestTestCommandNonExistentBaseDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/base", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory not found")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", t.TempDir(), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	base, scenariosDir := scenarioFixture(t, nil)

	out, err := runTestCommand(t, "text", base, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandPassingScenario(t *testing.T) {
	base, scenariosDir := scenarioFixture(t, map[string]string{"posts_refetch.yaml": postsScenario})

	out, err := runTestCommand(t, "text", base, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "posts_refetch")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandUpdateThenCompareGolden(t *testing.T) {
	base, scenariosDir := scenarioFixture(t, map[string]string{"posts_refetch.yaml": postsScenario})

	out, err := runTestCommand(t, "text", "--update", base, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	goldenPath := filepath.Join(scenariosDir, "golden", "posts_refetch.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"posts_refetch"`)

	_, err = runTestCommand(t, "text", base, scenariosDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"posts_refetch","trace":[]}`), 0644))
	out, err = runTestCommand(t, "text", base, scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Golden file mismatch")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	failing := `
name: wrong_ids
description: "Expects the wrong ids"
specs: [specs/posts.cue]
seed:
  posts:
    - {id: 1, rank: 1}
steps:
  - register: posts
    expect: {key: posts, ids: ["9"]}
`
	base, scenariosDir := scenarioFixture(t, map[string]string{
		"posts_refetch.yaml": postsScenario,
		"wrong_ids.yaml":     failing,
	})

	out, err := runTestCommand(t, "json", base, scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "wrong_ids" {
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "ids = [1], want [9]")
		}
	}
}

func TestTestCommandFilter(t *testing.T) {
	base, scenariosDir := scenarioFixture(t, map[string]string{"posts_refetch.yaml": postsScenario})

	out, err := runTestCommand(t, "text", "--filter", "other_*", base, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	root := filepath.Join("..", "..")
	out, err := runTestCommand(t, "text", root, filepath.Join(root, "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}
