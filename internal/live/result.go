package live

import (
	"context"
	"fmt"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/page"
)

// Shape is the kind of value held by an assignment.
type Shape int

const (
	// ShapeNone is an absent value.
	ShapeNone Shape = iota
	// ShapeRecord is a single record.
	ShapeRecord
	// ShapeList is an ordered list of records.
	ShapeList
	// ShapePage is one page of a paginated query.
	ShapePage
	// ShapeLoading marks an assignment deferred until the session connects.
	ShapeLoading
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeRecord:
		return "record"
	case ShapeList:
		return "list"
	case ShapePage:
		return "page"
	case ShapeLoading:
		return "loading"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Result is the value displayed under an assignment key.
// Only the field matching Shape is meaningful.
type Result struct {
	Shape  Shape
	Record ir.Record
	List   []ir.Record
	Page   page.Page
}

// None is the absent result.
func None() Result { return Result{Shape: ShapeNone} }

// One wraps a single record.
func One(r ir.Record) Result { return Result{Shape: ShapeRecord, Record: r} }

// Many wraps a list of records.
func Many(rs []ir.Record) Result { return Result{Shape: ShapeList, List: rs} }

// Paged wraps a page.
func Paged(p page.Page) Result { return Result{Shape: ShapePage, Page: p} }

// Loading is the placeholder assigned while registration is deferred.
func Loading() Result { return Result{Shape: ShapeLoading} }

// Records returns the displayed records of r in display order.
func (r Result) Records() []ir.Record {
	switch r.Shape {
	case ShapeRecord:
		return []ir.Record{r.Record}
	case ShapeList:
		return r.List
	case ShapePage:
		return r.Page.Results
	default:
		return nil
	}
}

// Callback fetches the value of a live assignment.
//
// A callback is either NoArgs, which always fetches the same thing, or
// WithPageOpts, which receives the page options to fetch (nil for the
// first page). The form is fixed at construction.
type Callback struct {
	noArgs   func(ctx context.Context, s *Session) (Result, error)
	withOpts func(ctx context.Context, s *Session, opts *page.Options) (Result, error)
}

// NoArgs builds a callback that ignores page options.
func NoArgs(fn func(ctx context.Context, s *Session) (Result, error)) Callback {
	return Callback{noArgs: fn}
}

// WithPageOpts builds a callback that receives page options.
func WithPageOpts(fn func(ctx context.Context, s *Session, opts *page.Options) (Result, error)) Callback {
	return Callback{withOpts: fn}
}

// IsZero reports whether c wraps no function.
func (c Callback) IsZero() bool {
	return c.noArgs == nil && c.withOpts == nil
}

// AcceptsPageOpts reports whether c was built with WithPageOpts.
func (c Callback) AcceptsPageOpts() bool {
	return c.withOpts != nil
}

// Call invokes the wrapped function. A NoArgs callback ignores opts.
func (c Callback) Call(ctx context.Context, s *Session, opts *page.Options) (Result, error) {
	if c.withOpts != nil {
		return c.withOpts(ctx, s, opts)
	}
	return c.noArgs(ctx, s)
}
