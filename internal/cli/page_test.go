package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPageCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewPageCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPageOffsetLinks(t *testing.T) {
	out, err := runPageCommand(t, "text",
		"--kind", "offset", "--params", "offset=20&limit=10", "--more", "--total", "57")
	require.NoError(t, err)

	assert.Contains(t, out, "offset page 3 of 6\n")
	assert.Contains(t, out, "  first limit=10\n")
	assert.Contains(t, out, "  prev  limit=10&offset=10\n")
	assert.Contains(t, out, "  next  limit=10&offset=30\n")
	assert.Contains(t, out, "  last  limit=10&offset=50\n")
}

func TestPageOffsetUnknownTotal(t *testing.T) {
	out, err := runPageCommand(t, "json", "--params", "limit=10")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PageReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.IsFirst)
	assert.Equal(t, 1, resp.Data.Number)
	assert.Zero(t, resp.Data.LastPage)

	reachable := map[string]bool{}
	for _, l := range resp.Data.Links {
		reachable[l.Target] = l.Reachable
	}
	assert.Equal(t, map[string]bool{"first": true, "prev": false, "next": false, "last": false}, reachable)
}

func TestPageNumberTarget(t *testing.T) {
	out, err := runPageCommand(t, "text", "4", "--params", "offset=0&limit=10", "--total", "57")
	require.NoError(t, err)
	assert.Contains(t, out, "  4     limit=10&offset=30\n")

	_, err = runPageCommand(t, "text", "7", "--params", "limit=10", "--total", "57")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "page target not reachable")
}

func TestPageCursorLinks(t *testing.T) {
	out, err := runPageCommand(t, "text",
		"--kind", "cursor", "--params", "after=c2&limit=2", "--more",
		"--first-cursor", "c3", "--last-cursor", "c4")
	require.NoError(t, err)

	assert.Contains(t, out, "cursor page\n")
	assert.Contains(t, out, "  prev  before=c3&limit=2\n")
	assert.Contains(t, out, "  next  after=c4&limit=2\n")
	assert.Contains(t, out, "  last  -\n")
}

func TestPageCursorBackwardsWithoutMore(t *testing.T) {
	_, err := runPageCommand(t, "text", "prev",
		"--kind", "cursor", "--params", "before=c5&limit=2",
		"--first-cursor", "c1", "--last-cursor", "c2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prev")
}

func TestPageInvalidArgs(t *testing.T) {
	_, err := runPageCommand(t, "text", "--kind", "keyset")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runPageCommand(t, "text", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
