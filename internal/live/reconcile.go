package live

import (
	"context"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/queryir"
)

// reconcile refetches the value displayed under an entry and merges it
// with current according to the entry's results policy.
func (s *Session) reconcile(ctx context.Context, current Result, e Entry) (Result, error) {
	opts := e.Options
	switch current.Shape {
	case ShapeList:
		fresh, err := e.Callback.Call(ctx, s, nil)
		if err != nil {
			return Result{}, err
		}
		if opts.Results == Lose || len(current.List) == 0 || fresh.Shape != ShapeList {
			return fresh, nil
		}
		return Many(keepRecords(current.List, fresh.List, opts.PrimaryKey)), nil

	case ShapePage:
		if opts.Results == Lose || len(current.Page.Results) == 0 {
			return s.refetchPage(ctx, e, current.Page.Opts)
		}
		narrowed := narrowToDisplayed(current.Page, opts.PrimaryKey)
		fresh, err := e.Callback.Call(ctx, s, &narrowed)
		if err != nil {
			return Result{}, err
		}
		kept := keepRecords(current.Page.Results, fresh.Records(), opts.PrimaryKey)
		return Paged(current.Page.WithResults(kept)), nil

	default:
		return e.Callback.Call(ctx, s, nil)
	}
}

// refetchPage fetches the page described by opts and adopts it in full.
func (s *Session) refetchPage(ctx context.Context, e Entry, opts page.Options) (Result, error) {
	fresh, err := e.Callback.Call(ctx, s, &opts)
	if err != nil {
		return Result{}, err
	}
	markFirst(&fresh)
	return fresh, nil
}

// narrowToDisplayed returns page options that fetch exactly the records
// displayed on p: the stored filter conjoined with a primary-key match,
// with no position and a limit large enough for every displayed record.
func narrowToDisplayed(p page.Page, pk []string) page.Options {
	keys := make([]ir.Key, 0, len(p.Results))
	for _, r := range p.Results {
		if k, err := ir.KeyOf(r, pk); err == nil {
			keys = append(keys, k)
		}
	}

	opts := p.Opts
	// The key match already selects exactly the displayed rows; a cursor or
	// offset would skip some of them.
	opts.Filter = queryir.Conjoin(opts.Filter, queryir.MatchKeys(pk, keys))
	opts.After, opts.Before, opts.Offset = "", "", 0
	opts.Count = false
	opts.Limit = max(opts.Limit, p.Limit, len(p.Results))
	return opts
}

// keepRecords substitutes every displayed record that is present in fresh
// (matched by primary key) and retains the others unchanged. The result
// has the length and order of displayed.
func keepRecords(displayed, fresh []ir.Record, pk []string) []ir.Record {
	index := make(map[string]ir.Record, len(fresh))
	for _, r := range fresh {
		k, err := ir.KeyOf(r, pk)
		if err != nil {
			continue
		}
		index[k.String()] = r
	}

	out := make([]ir.Record, len(displayed))
	for i, old := range displayed {
		out[i] = old
		k, err := ir.KeyOf(old, pk)
		if err != nil {
			continue
		}
		if r, ok := index[k.String()]; ok {
			out[i] = r
		}
	}
	return out
}
