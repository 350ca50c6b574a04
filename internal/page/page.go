package page

import (
	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/queryir"
)

// Kind distinguishes cursor pages from offset pages.
type Kind int

const (
	// Cursor pages are positioned by an opaque keyset cursor.
	Cursor Kind = iota + 1
	// Offset pages are positioned by a row offset.
	Offset
)

func (k Kind) String() string {
	switch k {
	case Cursor:
		return "cursor"
	case Offset:
		return "offset"
	default:
		return "unknown"
	}
}

// Options is the option set passed to a query callback to request a page.
//
// At most one of After and Before is set. Limit 0 lets the source apply
// its default. Filter narrows the query further and is conjoined with the
// source's own filter.
type Options struct {
	After  string            `url:"after,omitempty" json:"after,omitempty"`
	Before string            `url:"before,omitempty" json:"before,omitempty"`
	Offset int               `url:"offset,omitempty" json:"offset,omitempty"`
	Limit  int               `url:"limit,omitempty" json:"limit,omitempty"`
	Count  bool              `url:"count,omitempty" json:"count,omitempty"`
	Filter queryir.Predicate `url:"-" json:"-"`
}

// Positioned reports whether the options request anything but the first page.
func (o Options) Positioned() bool {
	return o.After != "" || o.Before != "" || o.Offset > 0
}

// Page is one page of results.
//
// For cursor pages After/Before record the cursor the page was fetched
// with ("" means none). For offset pages Offset is the row offset.
// More reports whether further records exist in the direction the page
// was fetched. Count is the total number of matching records, nil when
// it was not requested or is unknown.
type Page struct {
	Kind    Kind
	Results []ir.Record
	After   string
	Before  string
	Offset  int
	Limit   int
	More    bool
	Count   *int
	IsFirst bool

	// Opts is the option set that produced this page.
	Opts Options
}

// MarkFirst derives IsFirst from how the page was fetched: a cursor page
// fetched without a cursor, or an offset page at offset zero.
func MarkFirst(p *Page) {
	switch p.Kind {
	case Cursor:
		p.IsFirst = p.After == "" && p.Before == ""
	case Offset:
		p.IsFirst = p.Offset == 0
	}
}

// Backwards reports whether a cursor page was fetched with a Before cursor.
func (p Page) Backwards() bool {
	return p.Kind == Cursor && p.Before != ""
}

// WithResults returns a copy of p carrying results instead of its own.
// Every pagination field is left untouched.
func (p Page) WithResults(results []ir.Record) Page {
	p.Results = results
	return p
}

// IntPtr is a convenience for building pages with a known count.
func IntPtr(n int) *int {
	return &n
}
