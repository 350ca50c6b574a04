package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var recs []ir.IRObject
	for i := 1; i <= 4; i++ {
		recs = append(recs, ir.IRObject{
			"id":   ir.IRInt(int64(i)),
			"rank": ir.IRInt(int64(i)),
			"open": ir.IRBool(i%2 == 1),
		})
	}
	_, err = st.PutAll(context.Background(), "posts", recs)
	require.NoError(t, err)
	return st
}

func TestCallbackFor_List(t *testing.T) {
	st := seededStore(t)
	spec := ir.LiveSpec{
		Key: "open",
		Source: ir.SourceSpec{
			Collection: "posts",
			Where:      ir.IRObject{"open": ir.IRBool(true)},
			OrderBy:    []ir.OrderField{{Field: "rank", Desc: true}},
		},
	}

	cb := CallbackFor(SourceFor(st, spec), spec)
	assert.False(t, cb.AcceptsPageOpts())

	r, err := cb.Call(context.Background(), live.NewSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, live.ShapeList, r.Shape)
	assert.Equal(t, []string{"3", "1"}, ir.IDs(r.Records(), []string{"id"}))
}

func TestCallbackFor_Single(t *testing.T) {
	st := seededStore(t)
	spec := ir.LiveSpec{
		Key: "top",
		Source: ir.SourceSpec{
			Collection: "posts",
			OrderBy:    []ir.OrderField{{Field: "rank", Desc: true}},
			Single:     true,
		},
	}

	r, err := CallbackFor(SourceFor(st, spec), spec).Call(context.Background(), live.NewSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, live.ShapeRecord, r.Shape)
	assert.Equal(t, ir.IRInt(4), r.Record.Get("id"))

	spec.Source.Where = ir.IRObject{"rank": ir.IRInt(99)}
	r, err = CallbackFor(SourceFor(st, spec), spec).Call(context.Background(), live.NewSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, live.ShapeNone, r.Shape)
}

func TestCallbackFor_PageDefaultsToFirstPage(t *testing.T) {
	st := seededStore(t)
	spec := ir.LiveSpec{
		Key: "paged",
		Source: ir.SourceSpec{
			Collection: "posts",
			OrderBy:    []ir.OrderField{{Field: "rank"}},
			Paginate:   ir.PaginateOffset,
			Limit:      3,
			Count:      true,
		},
	}

	cb := CallbackFor(SourceFor(st, spec), spec)
	require.True(t, cb.AcceptsPageOpts())

	r, err := cb.Call(context.Background(), live.NewSession(), nil)
	require.NoError(t, err)
	require.Equal(t, live.ShapePage, r.Shape)
	assert.Equal(t, []string{"1", "2", "3"}, ir.IDs(r.Records(), []string{"id"}))
	assert.True(t, r.Page.More)
	require.NotNil(t, r.Page.Count)
	assert.Equal(t, 4, *r.Page.Count)

	r, err = cb.Call(context.Background(), live.NewSession(), &page.Options{Offset: 3, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ir.IDs(r.Records(), []string{"id"}))
	assert.False(t, r.Page.More)
	assert.Nil(t, r.Page.Count)
}
