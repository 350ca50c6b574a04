package live

import (
	"slices"
	"time"

	"github.com/juju/errors"

	"github.com/roach88/livequery/internal/ir"
)

// ResultsPolicy decides how a background refetch treats displayed records.
type ResultsPolicy string

const (
	// Keep preserves the displayed membership and order, updating records
	// in place by primary key.
	Keep ResultsPolicy = ir.ResultsKeep
	// Lose replaces the displayed value with the fresh result.
	Lose ResultsPolicy = ir.ResultsLose
)

// DefaultPrimaryKey identifies records when Options.PrimaryKey is empty.
var DefaultPrimaryKey = []string{"id"}

// Options configures one live assignment.
type Options struct {
	// Subscribe lists the topics that invalidate the assignment. Empty
	// means any topic the session receives.
	Subscribe []string

	// NoRefetch registers the assignment without reacting to signals.
	// Page navigation still works.
	NoRefetch bool

	// AfterFetch runs after every successful fetch, once the result has
	// been assigned.
	AfterFetch func(r Result, s *Session)

	// Results defaults to Keep.
	Results ResultsPolicy

	// LoadUntilConnected defers registration until the session connects,
	// assigning Loading meanwhile.
	LoadUntilConnected bool

	// Initial is used instead of the first fetch.
	Initial *Result

	// RefetchInterval schedules a periodic refetch. Zero disables it.
	RefetchInterval time.Duration

	// RefetchWindow is the minimum spacing between refetches. Signals
	// inside the window are deferred to its end.
	RefetchWindow time.Duration

	// PrimaryKey names the fields identifying a record. Defaults to
	// DefaultPrimaryKey.
	PrimaryKey []string
}

// WithDefaults returns o with defaults filled in.
func (o Options) WithDefaults() Options {
	if o.Results == "" {
		o.Results = Keep
	}
	if len(o.PrimaryKey) == 0 {
		o.PrimaryKey = DefaultPrimaryKey
	}
	return o
}

// Validate checks the option set. Errors satisfy errors.Is(err, errors.NotValid).
func (o Options) Validate() error {
	for i, t := range o.Subscribe {
		if t == "" {
			return errors.NotValidf("subscribe[%d]: empty topic", i)
		}
	}
	switch o.Results {
	case "", Keep, Lose:
	default:
		return errors.NotValidf("results %q: want %q or %q", o.Results, Keep, Lose)
	}
	if o.RefetchInterval < 0 {
		return errors.NotValidf("negative refetch interval %s", o.RefetchInterval)
	}
	if o.RefetchWindow < 0 {
		return errors.NotValidf("negative refetch window %s", o.RefetchWindow)
	}
	seen := make(map[string]bool, len(o.PrimaryKey))
	for _, f := range o.PrimaryKey {
		if f == "" {
			return errors.NotValidf("empty primary key field")
		}
		if seen[f] {
			return errors.NotValidf("duplicate primary key field %q", f)
		}
		seen[f] = true
	}
	if o.Initial != nil && o.Initial.Shape == ShapeLoading {
		return errors.NotValidf("initial result of shape %s", ShapeLoading)
	}
	return nil
}

// OptionsFromSpec converts a compiled declaration into options.
// AfterFetch and Initial have no declarative form and stay unset.
func OptionsFromSpec(spec ir.LiveSpec) Options {
	return Options{
		Subscribe:          slices.Clone(spec.Subscribe),
		NoRefetch:          !spec.Refetch,
		Results:            ResultsPolicy(spec.Results),
		LoadUntilConnected: spec.LoadUntilConnected,
		RefetchInterval:    spec.RefetchInterval,
		RefetchWindow:      spec.RefetchWindow,
		PrimaryKey:         slices.Clone(spec.PrimaryKey),
	}
}
