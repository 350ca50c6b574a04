package page

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned when a navigation target is not reachable
// from the current page.
var ErrInvalidTarget = errors.New("page target not reachable")

type targetKind int

const (
	targetFirst targetKind = iota + 1
	targetPrev
	targetNext
	targetLast
	targetNumber
)

// Target names the page to navigate to.
type Target struct {
	kind targetKind
	n    int
}

// Symbolic targets.
var (
	First = Target{kind: targetFirst}
	Prev  = Target{kind: targetPrev}
	Next  = Target{kind: targetNext}
	Last  = Target{kind: targetLast}
)

// Number targets the 1-indexed page n.
func Number(n int) Target {
	return Target{kind: targetNumber, n: n}
}

// ParseTarget parses "first", "prev", "next", "last" or a page number.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return First, nil
	case "prev", "previous":
		return Prev, nil
	case "next":
		return Next, nil
	case "last":
		return Last, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Target{}, fmt.Errorf("invalid page target %q: want first, prev, next, last or a number", s)
	}
	return Number(n), nil
}

func (t Target) String() string {
	switch t.kind {
	case targetFirst:
		return "first"
	case targetPrev:
		return "prev"
	case targetNext:
		return "next"
	case targetLast:
		return "last"
	case targetNumber:
		return strconv.Itoa(t.n)
	default:
		return "invalid"
	}
}

// LastPage returns ceil(count / limit) when the page's count is known.
// An empty result set still has one (empty) page.
func LastPage(p Page) (int, bool) {
	if p.Count == nil {
		return 0, false
	}
	if p.Limit <= 0 || *p.Count <= 0 {
		return 1, true
	}
	return (*p.Count + p.Limit - 1) / p.Limit, true
}

// PageNumber returns the 1-indexed number of an offset page.
// Cursor pages have no absolute number.
func PageNumber(p Page) (int, bool) {
	if p.Kind != Offset {
		return 0, false
	}
	if p.Limit <= 0 {
		return 1, true
	}
	return p.Offset/p.Limit + 1, true
}

// LinkParams returns the options that request target from p.
// The second result is false when target is not reachable from p.
//
// The returned options carry position and limit only; callers merge in
// the filter and count flag they fetched p with.
func LinkParams(p Page, target Target) (Options, bool) {
	switch p.Kind {
	case Offset:
		return offsetLink(p, target)
	case Cursor:
		return cursorLink(p, target)
	default:
		return Options{}, false
	}
}

func offsetLink(p Page, target Target) (Options, bool) {
	switch target.kind {
	case targetFirst:
		return Options{Limit: p.Limit}, true

	case targetPrev:
		if p.Offset <= 0 {
			return Options{}, false
		}
		return Options{Offset: max(p.Offset-p.Limit, 0), Limit: p.Limit}, true

	case targetNext:
		if !p.More {
			return Options{}, false
		}
		if p.Count != nil && p.Offset+p.Limit >= *p.Count {
			return Options{}, false
		}
		return Options{Offset: p.Offset + p.Limit, Limit: p.Limit}, true

	case targetLast:
		last, ok := LastPage(p)
		if !ok {
			return Options{}, false
		}
		return Options{Offset: (last - 1) * p.Limit, Limit: p.Limit}, true

	case targetNumber:
		if target.n < 1 {
			return Options{}, false
		}
		if last, ok := LastPage(p); ok && target.n > last {
			return Options{}, false
		}
		return Options{Offset: (target.n - 1) * p.Limit, Limit: p.Limit}, true

	default:
		return Options{}, false
	}
}

func cursorLink(p Page, target Target) (Options, bool) {
	switch target.kind {
	case targetFirst:
		return Options{Limit: p.Limit}, true

	case targetNext:
		if len(p.Results) == 0 {
			return Options{}, false
		}
		// Fetched forwards (or first page): More says whether anything follows.
		// Fetched backwards: the page we came from lies ahead.
		if !p.Backwards() && !p.More {
			return Options{}, false
		}
		last := p.Results[len(p.Results)-1]
		if last.Cursor == "" {
			return Options{}, false
		}
		return Options{After: last.Cursor, Limit: p.Limit}, true

	case targetPrev:
		if p.IsFirst || len(p.Results) == 0 {
			return Options{}, false
		}
		if p.Backwards() && !p.More {
			return Options{}, false
		}
		first := p.Results[0]
		if first.Cursor == "" {
			return Options{}, false
		}
		return Options{Before: first.Cursor, Limit: p.Limit}, true

	default:
		// Cursor pages have no absolute position: no last or numbered links.
		return Options{}, false
	}
}
