package harness

import (
	"context"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/store"
)

// SourceFor builds the store query behind a live declaration.
func SourceFor(st *store.Store, spec ir.LiveSpec) *store.Source {
	src := &store.Source{
		Store:        st,
		Collection:   spec.Source.Collection,
		Paginate:     spec.Source.Paginate,
		DefaultLimit: spec.Source.Limit,
	}

	var preds []queryir.Predicate
	for _, field := range spec.Source.Where.SortedKeys() {
		preds = append(preds, queryir.Equals{Field: field, Value: spec.Source.Where[field]})
	}
	switch len(preds) {
	case 0:
	case 1:
		src.Where = preds[0]
	default:
		src.Where = queryir.And{Predicates: preds}
	}

	for _, o := range spec.Source.OrderBy {
		src.OrderBy = append(src.OrderBy, queryir.Order{Field: o.Field, Desc: o.Desc})
	}
	return src
}

// CallbackFor wraps src in the callback the declaration's shape needs:
// a page callback for paginated sources, the first record for single
// sources and the whole list otherwise.
func CallbackFor(src *store.Source, spec ir.LiveSpec) live.Callback {
	switch {
	case spec.Source.Single:
		return live.NoArgs(func(ctx context.Context, _ *live.Session) (live.Result, error) {
			rec, ok, err := src.First(ctx)
			if err != nil {
				return live.Result{}, err
			}
			if !ok {
				return live.None(), nil
			}
			return live.One(rec), nil
		})

	case spec.Source.Paginate == ir.PaginateCursor || spec.Source.Paginate == ir.PaginateOffset:
		return live.WithPageOpts(func(ctx context.Context, _ *live.Session, opts *page.Options) (live.Result, error) {
			o := page.Options{Count: spec.Source.Count}
			if opts != nil {
				o = *opts
			}
			p, err := src.Page(ctx, &o)
			if err != nil {
				return live.Result{}, err
			}
			return live.Paged(p), nil
		})

	default:
		return live.NoArgs(func(ctx context.Context, _ *live.Session) (live.Result, error) {
			recs, err := src.List(ctx, nil)
			if err != nil {
				return live.Result{}, err
			}
			return live.Many(recs), nil
		})
	}
}
