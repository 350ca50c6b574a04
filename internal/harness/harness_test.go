package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/ir"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func seedPosts(n int) map[string][]map[string]interface{} {
	posts := make([]map[string]interface{}, n)
	for i := range posts {
		posts[i] = map[string]interface{}{
			"id":    i + 1,
			"title": "p",
			"rank":  i + 1,
		}
	}
	return map[string][]map[string]interface{}{"posts": posts}
}

func newScenario(t *testing.T, steps ...Step) *Scenario {
	t.Helper()
	return &Scenario{
		Name:        "test",
		Description: "test",
		Specs:       []string{writeSpec(t, t.TempDir(), postsSpec)},
		Connected:   true,
		Seed:        seedPosts(3),
		Steps:       steps,
	}
}

func TestRun_RegisterAndRefetch(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "posts", Expect: &Expect{Key: "posts", Shape: "list", IDs: []string{"1", "2", "3"}, Fetches: intPtr(1)}},
		Step{
			Put:    &PutStep{Collection: "posts", Record: map[string]interface{}{"id": 2, "title": "edited", "rank": 2}},
			Expect: &Expect{Key: "posts", Records: []map[string]interface{}{{"id": 1}, {"title": "edited"}, {"id": 3}}, Fetches: intPtr(2)},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	labels := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		labels[i] = ev.Label()
	}
	assert.Equal(t, []string{
		"register:posts", "fetch:posts", "assign:posts",
		"put", "fetch:posts", "assign:posts",
	}, labels)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "posts", Expect: &Expect{Key: "posts", Shape: "page", IDs: []string{"3"}, Fetches: intPtr(7)}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "shape = list, want page")
	assert.Contains(t, result.Errors[1], "ids = [1 2 3], want [3]")
	assert.Contains(t, result.Errors[2], "fetches = 1, want 7")
}

func TestRun_OffsetPagesWithCount(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "paged", Expect: &Expect{Key: "paged", IDs: []string{"1", "2"}, Count: intPtr(3), More: boolPtr(true)}},
		Step{Navigate: &NavigateStep{Key: "paged", Target: "last"}, Expect: &Expect{Key: "paged", IDs: []string{"3"}, Count: intPtr(3), More: boolPtr(false)}},
		Step{Navigate: &NavigateStep{Key: "paged", Target: "next"}, Error: "not reachable"},
		Step{Navigate: &NavigateStep{Key: "paged", Target: "1"}, Expect: &Expect{Key: "paged", IDs: []string{"1", "2"}, IsFirst: boolPtr(true)}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "posts", Error: "boom"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error containing "boom", got none`)
}

func TestRun_DeleteMissingRecordFails(t *testing.T) {
	scenario := newScenario(t,
		Step{Delete: &DeleteStep{Collection: "posts", Key: []interface{}{99}}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "no such record")
}

func TestRun_WindowAndInterval(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "windowed", Expect: &Expect{Key: "windowed", Fetches: intPtr(1)}},
		Step{Advance: "20ms"},
		Step{Publish: "posts", Expect: &Expect{Key: "windowed", Fetches: intPtr(1)}},
		// window ends at 50ms
		Step{Advance: "40ms", Expect: &Expect{Key: "windowed", Fetches: intPtr(2)}},
		// interval fires at 1s and 2s
		Step{Advance: "2s", Expect: &Expect{Key: "windowed", Fetches: intPtr(4)}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var fetchTimes []int64
	for _, ev := range result.Trace {
		if ev.Event == EventFetch {
			fetchTimes = append(fetchTimes, ev.At)
		}
	}
	assert.Equal(t, []int64{0, 50, 1000, 2000}, fetchTimes)
}

func TestRun_PublishWhileDisconnectedDeliversInProcess(t *testing.T) {
	scenario := newScenario(t,
		Step{Register: "posts"},
		Step{Publish: "posts", Expect: &Expect{Key: "posts", Fetches: intPtr(2)}},
		Step{Publish: "comments", Expect: &Expect{Key: "posts", Fetches: intPtr(2)}},
	)
	scenario.Connected = false

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownDeclaration(t *testing.T) {
	_, err := Run(newScenario(t, Step{Register: "nope"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no live declaration "nope"`)
}

func TestRun_FloatRecordRejected(t *testing.T) {
	_, err := Run(newScenario(t, Step{Put: &PutStep{
		Collection: "posts",
		Record:     map[string]interface{}{"score": 1.5},
	}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestRun_InvalidSpecs(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "bad",
		Description: "bad",
		Specs: []string{writeSpec(t, dir, `
live: x: {
	source: collection: "posts"
	refetch: false
	refetch_window: "10ms"
}
`)},
		Steps: []Step{{Register: "x"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E111")
}

func TestConvertToIRValue(t *testing.T) {
	v, err := convertToIRValue(float64(3))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(3), v)

	_, err = convertToIRValue(2.5)
	assert.Error(t, err)

	_, err = convertToIRValue(struct{}{})
	assert.Error(t, err)

	v, err = convertToIRValue(nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, v)

	v, err = convertToIRValue([]interface{}{"a", 1, true})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRInt(1), ir.IRBool(true)}, v)
}
