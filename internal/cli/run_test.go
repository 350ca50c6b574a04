package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithInput(t *testing.T, format, input string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	specsDir := writeSpecsDir(t, t.TempDir(), postsSpec)

	_, err := runWithInput(t, "text", "", specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunInvalidSpecs(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := writeSpecsDir(t, tmpDir, `
package specs

live: x: {
	source: collection: "posts"
	refetch:          false
	refetch_interval: "1s"
}
`)

	_, err := runWithInput(t, "text", "", "--db", filepath.Join(tmpDir, "test.db"), specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile specs")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunNonExistentSpecsDir(t *testing.T) {
	_, err := runWithInput(t, "text", "",
		"--db", filepath.Join(t.TempDir(), "test.db"), "/nonexistent/directory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs directory not found")
}

func TestRunKeepsDeclarationsLive(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := writeSpecsDir(t, tmpDir, postsSpec)

	input := strings.Join([]string{
		`# seed posts`,
		`put posts {"id": 1, "title": "a", "rank": 1}`,
		`put posts {"id": 2, "title": "b", "rank": 2}`,
		`put posts {"id": 3, "title": "c", "rank": 3}`,
		`frobnicate`,
		`delete posts 99`,
		`quit`,
	}, "\n")

	out, err := runWithInput(t, "text", input, "--db", filepath.Join(tmpDir, "test.db"), specsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "posts list []\n")
	assert.Contains(t, out, "paged page [] count=0 links=first,last\n")
	assert.Contains(t, out, "posts list [1 2 3]\n")
	assert.Contains(t, out, `error: unknown command "frobnicate"`)
	assert.Contains(t, out, "error: delete posts 99: no such record")
}

func TestRunJSONOutput(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := writeSpecsDir(t, tmpDir, postsSpec)

	out, err := runWithInput(t, "json", "show posts\nshow nope\n",
		"--db", filepath.Join(tmpDir, "test.db"), specsDir)
	require.NoError(t, err)

	var views []assignmentView
	var errs []CLIResponse
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, `"status"`) {
			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(line), &resp))
			errs = append(errs, resp)
			continue
		}
		var v assignmentView
		require.NoError(t, json.Unmarshal([]byte(line), &v))
		views = append(views, v)
	}

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error.Message, `"nope" is not assigned`)

	shapes := map[string]string{}
	for _, v := range views {
		shapes[v.Key] = v.Shape
	}
	assert.Equal(t, map[string]string{"posts": "list", "paged": "page"}, shapes)
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"put", "posts", `{"a": 1, "b": 2}`},
		splitArgs(`  put   posts {"a": 1, "b": 2} `, 3))
	assert.Equal(t, []string{"show", "posts"}, splitArgs("show posts", 3))
	assert.Empty(t, splitArgs("   ", 3))
}
