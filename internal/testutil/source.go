package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/queryir"
)

// Source is an in-memory record source ordered by insertion. It counts
// fetches and can be told to fail.
type Source struct {
	mu      sync.Mutex
	records []ir.Record
	fetches int
	calls   []*page.Options
	err     error
}

// NewSource creates a source holding records.
func NewSource(records ...ir.Record) *Source {
	return &Source{records: slices.Clone(records)}
}

// Set replaces the stored records.
func (s *Source) Set(records ...ir.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Clone(records)
}

// Fail makes every following fetch return err. Pass nil to recover.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Fetches returns how many fetches were attempted.
func (s *Source) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// LastOptions returns the page options of the most recent fetch.
func (s *Source) LastOptions() *page.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// List is a NoArgs callback returning every record.
func (s *Source) List() live.Callback {
	return live.NoArgs(func(ctx context.Context, _ *live.Session) (live.Result, error) {
		recs, err := s.fetch(nil)
		if err != nil {
			return live.Result{}, err
		}
		return live.Many(recs), nil
	})
}

// First is a NoArgs callback returning the first record, or None.
func (s *Source) First() live.Callback {
	return live.NoArgs(func(ctx context.Context, _ *live.Session) (live.Result, error) {
		recs, err := s.fetch(nil)
		if err != nil {
			return live.Result{}, err
		}
		if len(recs) == 0 {
			return live.None(), nil
		}
		return live.One(recs[0]), nil
	})
}

// OffsetPages is a WithPageOpts callback producing offset pages of
// defaultLimit records.
func (s *Source) OffsetPages(defaultLimit int) live.Callback {
	return s.Pages(page.Options{Limit: defaultLimit})
}

// Pages is a WithPageOpts callback producing offset pages. A nil option
// set (the first fetch) uses defaults; a zero limit uses the default limit.
func (s *Source) Pages(defaults page.Options) live.Callback {
	return live.WithPageOpts(func(ctx context.Context, _ *live.Session, opts *page.Options) (live.Result, error) {
		o := defaults
		if opts != nil {
			o = *opts
		}
		if o.Limit <= 0 {
			o.Limit = defaults.Limit
		}
		recs, err := s.fetch(&o)
		if err != nil {
			return live.Result{}, err
		}

		total := len(recs)
		start := min(o.Offset, total)
		end := min(start+o.Limit, total)
		p := page.Page{
			Kind:    page.Offset,
			Results: slices.Clone(recs[start:end]),
			Offset:  o.Offset,
			Limit:   o.Limit,
			More:    end < total,
			Opts:    o,
		}
		if o.Count {
			p.Count = page.IntPtr(total)
		}
		return live.Paged(p), nil
	})
}

func (s *Source) fetch(opts *page.Options) ([]ir.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if opts != nil {
		cp := *opts
		s.calls = append(s.calls, &cp)
	} else {
		s.calls = append(s.calls, nil)
	}
	if s.err != nil {
		return nil, s.err
	}

	var filter queryir.Predicate
	if opts != nil {
		filter = opts.Filter
	}
	out := make([]ir.Record, 0, len(s.records))
	for _, r := range s.records {
		ok, err := Matches(r, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Matches evaluates a predicate against a record in memory.
// A nil predicate matches everything.
func Matches(r ir.Record, p queryir.Predicate) (bool, error) {
	switch p := p.(type) {
	case nil:
		return true, nil
	case queryir.Equals:
		return ir.Equal(r.Get(p.Field), p.Value), nil
	case queryir.In:
		v := r.Get(p.Field)
		for _, want := range p.Values {
			if ir.Equal(v, want) {
				return true, nil
			}
		}
		return false, nil
	case queryir.And:
		for _, sub := range p.Predicates {
			ok, err := Matches(r, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case queryir.Or:
		for _, sub := range p.Predicates {
			ok, err := Matches(r, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported predicate %T", p)
	}
}

// Rec builds a record with an integer id and a title.
func Rec(id int64, title string) ir.Record {
	return ir.NewRecord(ir.O("id", ir.IRInt(id)), ir.O("title", ir.IRString(title)))
}

// Titles returns the title field of each record.
func Titles(recs []ir.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		if s, ok := r.Get("title").(ir.IRString); ok {
			out[i] = string(s)
		}
	}
	return out
}
