package live_test

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
	"github.com/roach88/livequery/internal/testutil"
)

func fivePosts() *testutil.Source {
	return testutil.NewSource(
		testutil.Rec(1, "a"), testutil.Rec(2, "b"), testutil.Rec(3, "c"),
		testutil.Rec(4, "d"), testutil.Rec(5, "e"),
	)
}

func TestChangePage_WalksOffsetPages(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	require.NoError(t, s.KeepLive(ctx, "posts", fivePosts().OffsetPages(2), live.Options{}))

	assert.Equal(t, map[string]bool{"first": true, "prev": false, "next": true, "last": false}, s.PageLinks("posts"))

	require.NoError(t, s.ChangePage(ctx, "posts", page.Next))
	require.NoError(t, s.ChangePage(ctx, "posts", page.Next))
	got, _ := s.Read("posts")
	assert.Equal(t, []string{"e"}, testutil.Titles(got.Page.Results))
	assert.False(t, got.Page.IsFirst)

	err := s.ChangePage(ctx, "posts", page.Next)
	assert.True(t, errors.Is(err, page.ErrInvalidTarget))

	require.NoError(t, s.ChangePage(ctx, "posts", page.First))
	got, _ = s.Read("posts")
	assert.Equal(t, []string{"a", "b"}, testutil.Titles(got.Page.Results))
	assert.True(t, got.Page.IsFirst)
}

func TestChangePage_CarriesFilterAndCount(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	src := fivePosts()
	filter := queryir.In{Field: "id", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(3), ir.IRInt(5)}}

	cb := src.Pages(page.Options{Limit: 2, Filter: filter, Count: true})
	require.NoError(t, s.KeepLive(ctx, "posts", cb, live.Options{}))

	got, _ := s.Read("posts")
	assert.Equal(t, []string{"a", "c"}, testutil.Titles(got.Page.Results))
	require.NotNil(t, got.Page.Count)
	assert.Equal(t, 3, *got.Page.Count)

	require.NoError(t, s.ChangePage(ctx, "posts", page.Last))
	got, _ = s.Read("posts")
	assert.Equal(t, []string{"e"}, testutil.Titles(got.Page.Results))
	require.NotNil(t, got.Page.Count)
	assert.Equal(t, filter, src.LastOptions().Filter)
	assert.True(t, src.LastOptions().Count)
	assert.Equal(t, 2, src.LastOptions().Offset)

	require.NoError(t, s.ChangePage(ctx, "posts", page.Number(1)))
	err := s.ChangePage(ctx, "posts", page.Number(3))
	assert.ErrorIs(t, err, page.ErrInvalidTarget)
}

func TestChangePage_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()

	err := s.ChangePage(ctx, "missing", page.Next)
	assert.True(t, live.IsNotRegistered(err))

	src := testutil.NewSource(testutil.Rec(1, "a"))
	require.NoError(t, s.KeepLive(ctx, "list", src.List(), live.Options{}))
	err = s.ChangePage(ctx, "list", page.Next)
	assert.True(t, live.IsConfigError(err))

	bad := fivePosts()
	require.NoError(t, s.KeepLive(ctx, "posts", bad.OffsetPages(2), live.Options{}))
	boom := errors.New("boom")
	bad.Fail(boom)
	before, _ := s.Read("posts")

	err = s.ChangePage(ctx, "posts", page.Next)
	assert.Same(t, boom, err)
	after, _ := s.Read("posts")
	assert.Equal(t, before, after)
}

func TestChangePage_WorksWithNoRefetch(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	require.NoError(t, s.KeepLive(ctx, "posts", fivePosts().OffsetPages(2), live.Options{NoRefetch: true}))
	require.NoError(t, s.ChangePage(ctx, "posts", page.Next))
	got, _ := s.Read("posts")
	assert.Equal(t, []string{"c", "d"}, testutil.Titles(got.Page.Results))
}
