package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/ir"
)

func offsetPage(offset, limit int, more bool, count *int) Page {
	p := Page{Kind: Offset, Offset: offset, Limit: limit, More: more, Count: count}
	MarkFirst(&p)
	return p
}

func cursorRecords(cursors ...string) []ir.Record {
	out := make([]ir.Record, len(cursors))
	for i, c := range cursors {
		out[i] = ir.Record{Fields: ir.NewIRObject(ir.O("id", ir.IRInt(int64(i+1)))), Cursor: c}
	}
	return out
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"first", First},
		{"prev", Prev},
		{"previous", Prev},
		{" next ", Next},
		{"LAST", Last},
		{"3", Number(3)},
		{"0", Number(0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTarget("sideways")
	require.Error(t, err)
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "next", Next.String())
	assert.Equal(t, "7", Number(7).String())
	assert.Equal(t, "invalid", Target{}.String())
}

func TestMarkFirst(t *testing.T) {
	p := Page{Kind: Cursor}
	MarkFirst(&p)
	assert.True(t, p.IsFirst)

	p = Page{Kind: Cursor, Before: "c"}
	MarkFirst(&p)
	assert.False(t, p.IsFirst)

	p = Page{Kind: Offset, Offset: 0}
	MarkFirst(&p)
	assert.True(t, p.IsFirst)

	p = Page{Kind: Offset, Offset: 10}
	MarkFirst(&p)
	assert.False(t, p.IsFirst)
}

func TestLastPage(t *testing.T) {
	tests := []struct {
		name  string
		count *int
		limit int
		want  int
		ok    bool
	}{
		{"unknown count", nil, 10, 0, false},
		{"exact multiple", IntPtr(30), 10, 3, true},
		{"partial last page", IntPtr(31), 10, 4, true},
		{"empty result set", IntPtr(0), 10, 1, true},
		{"fewer than limit", IntPtr(3), 10, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LastPage(Page{Kind: Offset, Limit: tt.limit, Count: tt.count})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageNumber(t *testing.T) {
	n, ok := PageNumber(Page{Kind: Offset, Offset: 20, Limit: 10})
	require.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = PageNumber(Page{Kind: Offset, Offset: 0, Limit: 10})
	require.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = PageNumber(Page{Kind: Cursor, After: "x", Limit: 10})
	assert.False(t, ok)
}

func TestLinkParams_OffsetPrevNext(t *testing.T) {
	first := offsetPage(0, 10, true, nil)

	_, ok := LinkParams(first, Prev)
	assert.False(t, ok, "prev from offset 0")

	got, ok := LinkParams(first, Next)
	require.True(t, ok)
	assert.Equal(t, Options{Offset: 10, Limit: 10}, got)

	_, ok = LinkParams(offsetPage(10, 10, false, nil), Next)
	assert.False(t, ok, "next with more=false")

	got, ok = LinkParams(offsetPage(5, 10, true, nil), Prev)
	require.True(t, ok)
	assert.Equal(t, Options{Offset: 0, Limit: 10}, got, "prev clamps at zero")

	got, ok = LinkParams(offsetPage(30, 10, true, nil), Prev)
	require.True(t, ok)
	assert.Equal(t, Options{Offset: 20, Limit: 10}, got)
}

func TestLinkParams_OffsetNextStopsAtCount(t *testing.T) {
	p := offsetPage(20, 10, true, IntPtr(30))

	_, ok := LinkParams(p, Next)
	assert.False(t, ok)
}

func TestLinkParams_OffsetFirstLastNumbered(t *testing.T) {
	p := offsetPage(10, 10, true, IntPtr(45))

	got, ok := LinkParams(p, First)
	require.True(t, ok)
	assert.Equal(t, Options{Limit: 10}, got)

	got, ok = LinkParams(p, Last)
	require.True(t, ok)
	assert.Equal(t, Options{Offset: 40, Limit: 10}, got)

	got, ok = LinkParams(p, Number(3))
	require.True(t, ok)
	assert.Equal(t, Options{Offset: 20, Limit: 10}, got)

	_, ok = LinkParams(p, Number(6))
	assert.False(t, ok, "beyond last page")

	_, ok = LinkParams(p, Number(0))
	assert.False(t, ok, "below first page")
}

func TestLinkParams_OffsetUnknownCount(t *testing.T) {
	p := offsetPage(0, 10, true, nil)

	_, ok := LinkParams(p, Last)
	assert.False(t, ok)

	got, ok := LinkParams(p, Number(9))
	require.True(t, ok, "numbered links are unbounded without a count")
	assert.Equal(t, Options{Offset: 80, Limit: 10}, got)
}

func TestLinkParams_CursorFirstPage(t *testing.T) {
	p := Page{Kind: Cursor, Limit: 2, More: true, Results: cursorRecords("c1", "c2")}
	MarkFirst(&p)

	_, ok := LinkParams(p, Prev)
	assert.False(t, ok)

	got, ok := LinkParams(p, Next)
	require.True(t, ok)
	assert.Equal(t, Options{After: "c2", Limit: 2}, got)

	got, ok = LinkParams(p, First)
	require.True(t, ok)
	assert.Equal(t, Options{Limit: 2}, got)
}

func TestLinkParams_CursorForwardEnd(t *testing.T) {
	p := Page{Kind: Cursor, After: "c2", Limit: 2, More: false, Results: cursorRecords("c3")}
	MarkFirst(&p)

	_, ok := LinkParams(p, Next)
	assert.False(t, ok, "no more records after")

	got, ok := LinkParams(p, Prev)
	require.True(t, ok)
	assert.Equal(t, Options{Before: "c3", Limit: 2}, got)
}

func TestLinkParams_CursorBackwards(t *testing.T) {
	// Fetched backwards with nothing further back: prev is unreachable,
	// next leads back where we came from.
	p := Page{Kind: Cursor, Before: "c3", Limit: 2, More: false, Results: cursorRecords("c1", "c2")}
	MarkFirst(&p)

	_, ok := LinkParams(p, Prev)
	assert.False(t, ok)

	got, ok := LinkParams(p, Next)
	require.True(t, ok)
	assert.Equal(t, Options{After: "c2", Limit: 2}, got)

	p.More = true
	got, ok = LinkParams(p, Prev)
	require.True(t, ok)
	assert.Equal(t, Options{Before: "c1", Limit: 2}, got)
}

func TestLinkParams_CursorNoAbsoluteTargets(t *testing.T) {
	p := Page{Kind: Cursor, Limit: 2, More: true, Count: IntPtr(10), Results: cursorRecords("c1", "c2")}

	_, ok := LinkParams(p, Last)
	assert.False(t, ok)

	_, ok = LinkParams(p, Number(2))
	assert.False(t, ok)
}

func TestLinkParams_CursorEmptyPage(t *testing.T) {
	p := Page{Kind: Cursor, After: "c9", Limit: 2}
	MarkFirst(&p)

	_, ok := LinkParams(p, Next)
	assert.False(t, ok)
	_, ok = LinkParams(p, Prev)
	assert.False(t, ok)
}

func TestLinkParams_UnknownKind(t *testing.T) {
	_, ok := LinkParams(Page{}, First)
	assert.False(t, ok)
}
