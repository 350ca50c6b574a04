package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/queryir"
)

func TestMatches(t *testing.T) {
	r := Rec(2, "b")

	tests := []struct {
		name string
		p    queryir.Predicate
		want bool
	}{
		{"nil", nil, true},
		{"equals", queryir.Equals{Field: "id", Value: ir.IRInt(2)}, true},
		{"equals miss", queryir.Equals{Field: "id", Value: ir.IRInt(3)}, false},
		{"in", queryir.In{Field: "id", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}}, true},
		{"in empty", queryir.In{Field: "id"}, false},
		{"and", queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "id", Value: ir.IRInt(2)},
			queryir.Equals{Field: "title", Value: ir.IRString("b")},
		}}, true},
		{"or", queryir.Or{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "id", Value: ir.IRInt(9)},
			queryir.Equals{Field: "title", Value: ir.IRString("b")},
		}}, true},
		{"missing field is null", queryir.Equals{Field: "nope", Value: ir.IRNull{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(r, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_OffsetPages(t *testing.T) {
	src := NewSource(Rec(1, "a"), Rec(2, "b"), Rec(3, "c"))
	cb := src.OffsetPages(2)
	s := live.NewSession()

	require.NoError(t, s.KeepLive(context.Background(), "posts", cb, live.Options{}))
	got, ok := s.Read("posts")
	require.True(t, ok)
	require.Equal(t, live.ShapePage, got.Shape)
	assert.Equal(t, []string{"a", "b"}, Titles(got.Page.Results))
	assert.True(t, got.Page.More)
	assert.True(t, got.Page.IsFirst)
	assert.Equal(t, 1, src.Fetches())
	assert.Zero(t, src.LastOptions().Offset)

	require.NoError(t, s.ChangePage(context.Background(), "posts", page.Next))
	got, _ = s.Read("posts")
	assert.Equal(t, []string{"c"}, Titles(got.Page.Results))
	assert.False(t, got.Page.More)
	assert.Equal(t, 2, src.LastOptions().Offset)
}

func TestSource_Fail(t *testing.T) {
	boom := errors.New("boom")
	src := NewSource(Rec(1, "a"))
	src.Fail(boom)

	err := live.NewSession().KeepLive(context.Background(), "posts", src.List(), live.Options{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.Fetches())
}

func TestRecordingScheduler(t *testing.T) {
	var r RecordingScheduler

	r.SendAfter(Ms(10), live.Message{Signal: live.Refetch, Keys: []string{"a"}})
	stop := r.SendInterval(Ms(50), live.Message{Signal: live.Refetch, Keys: []string{"b"}})

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, Ms(10), calls[0].Delay)
	assert.True(t, calls[1].Interval)
	assert.False(t, calls[1].Stopped)

	stop()
	assert.True(t, r.Calls()[1].Stopped)

	msgs := r.Take()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"a"}, msgs[0].Keys)
	assert.Len(t, r.Calls(), 1)
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "s-1", NewFixedIDGenerator("s-1").Generate())
	assert.Equal(t, "test-session", NewFixedIDGenerator("").Generate())

	s := live.NewSession(live.WithIDGenerator(NewFixedIDGenerator("fixed")))
	assert.Equal(t, "fixed", s.ID())
}
