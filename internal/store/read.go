package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/querysql"
)

// DefaultLimit is the page size used when neither the request nor the
// source specifies one.
const DefaultLimit = 20

// Source is a query over one collection that can be fetched whole, as a
// single record, or page by page.
type Source struct {
	Store      *Store
	Collection string
	Where      queryir.Predicate
	OrderBy    []queryir.Order

	// Paginate is ir.PaginateCursor or ir.PaginateOffset for Page; List
	// and First ignore it.
	Paginate     string
	DefaultLimit int
}

// PrimaryKey returns the key fields of the source's collection.
func (src *Source) PrimaryKey() []string {
	return src.Store.PrimaryKey(src.Collection)
}

func (src *Source) selectFor(filter queryir.Predicate) queryir.Select {
	return queryir.Select{
		From:    src.Collection,
		Filter:  queryir.Conjoin(src.Where, filter),
		OrderBy: src.OrderBy,
	}
}

// List returns every matching record in display order.
// Returns an empty slice (not nil) when nothing matches.
func (src *Source) List(ctx context.Context, filter queryir.Predicate) ([]ir.Record, error) {
	compiler := querysql.NewSQLCompiler(src.PrimaryKey())
	stmt, err := compiler.Compile(src.selectFor(filter))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", src.Collection, err)
	}
	return src.fetch(ctx, stmt)
}

// First returns the first matching record. The bool is false when nothing matches.
func (src *Source) First(ctx context.Context) (ir.Record, bool, error) {
	compiler := querysql.NewSQLCompiler(src.PrimaryKey())
	stmt, err := compiler.CompilePage(src.selectFor(nil), querysql.Window{Limit: 1})
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("first %s: %w", src.Collection, err)
	}
	recs, err := src.fetch(ctx, stmt)
	if err != nil {
		return ir.Record{}, false, err
	}
	if len(recs) == 0 {
		return ir.Record{}, false, nil
	}
	return recs[0], true, nil
}

// Page fetches one page. A nil opts requests the first page.
//
// One extra row is read to decide More. Cursor pages stamp every record
// with its keyset cursor; More then refers to the fetch direction.
func (src *Source) Page(ctx context.Context, opts *page.Options) (page.Page, error) {
	var o page.Options
	if opts != nil {
		o = *opts
	}
	if o.Limit <= 0 {
		o.Limit = src.DefaultLimit
		if o.Limit <= 0 {
			o.Limit = DefaultLimit
		}
	}

	kind := page.Offset
	if src.Paginate == ir.PaginateCursor {
		kind = page.Cursor
	}

	compiler := querysql.NewSQLCompiler(src.PrimaryKey())
	sel := src.selectFor(o.Filter)
	w := querysql.Window{Limit: o.Limit + 1}

	switch kind {
	case page.Cursor:
		o.Offset = 0
		var err error
		if o.After != "" {
			if w.After, err = DecodeCursor(o.After); err != nil {
				return page.Page{}, err
			}
			o.Before = ""
		} else if o.Before != "" {
			if w.Before, err = DecodeCursor(o.Before); err != nil {
				return page.Page{}, err
			}
		}
	case page.Offset:
		o.After, o.Before = "", ""
		w.Offset = o.Offset
	}

	stmt, err := compiler.CompilePage(sel, w)
	if err != nil {
		return page.Page{}, fmt.Errorf("page %s: %w", src.Collection, err)
	}
	recs, err := src.fetch(ctx, stmt)
	if err != nil {
		return page.Page{}, err
	}

	more := len(recs) > o.Limit
	if more {
		recs = recs[:o.Limit]
	}
	if stmt.Reversed {
		slices.Reverse(recs)
	}

	if kind == page.Cursor {
		order, err := compiler.Ordering(sel)
		if err != nil {
			return page.Page{}, err
		}
		for i := range recs {
			if recs[i].Cursor, err = cursorFor(recs[i], order); err != nil {
				return page.Page{}, err
			}
		}
	}

	p := page.Page{
		Kind:    kind,
		Results: recs,
		After:   o.After,
		Before:  o.Before,
		Offset:  o.Offset,
		Limit:   o.Limit,
		More:    more,
		Opts:    o,
	}
	if o.Count {
		n, err := src.count(ctx, compiler, sel)
		if err != nil {
			return page.Page{}, err
		}
		p.Count = &n
	}
	page.MarkFirst(&p)
	return p, nil
}

func (src *Source) count(ctx context.Context, compiler *querysql.SQLCompiler, sel queryir.Select) (int, error) {
	stmt, err := compiler.CompileCount(sel)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", src.Collection, err)
	}
	var n int
	if err := src.Store.db.QueryRowContext(ctx, stmt.SQL, stmt.Params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", src.Collection, err)
	}
	return n, nil
}

func (src *Source) fetch(ctx context.Context, stmt querysql.Compiled) ([]ir.Record, error) {
	rows, err := src.Store.db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", src.Collection, err)
	}
	defer rows.Close()

	recs := []ir.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", src.Collection, err)
		}
		fields, err := unmarshalFields(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, ir.Record{Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", src.Collection, err)
	}
	return recs, nil
}

func cursorFor(rec ir.Record, order []queryir.Order) (string, error) {
	pos := make([]ir.IRValue, len(order))
	for i, o := range order {
		pos[i] = rec.Get(o.Field)
	}
	return EncodeCursor(pos)
}
