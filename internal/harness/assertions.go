package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] t=%dms %s", i+1, event.At, event.Label())
			if len(event.IDs) > 0 {
				fmt.Fprintf(&buf, " %v", event.IDs)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// matches reports whether event is of the assertion's event type and,
// when the assertion names a key, of that key.
func matches(event TraceEvent, assertion Assertion) bool {
	if event.Event != assertion.Event {
		return false
	}
	return assertion.Key == "" || event.Key == assertion.Key
}

// assertTraceContains checks that the trace holds a matching event.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", assertion.label()),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that labels appear in the specified order.
// Labels don't need to be consecutive; each is matched at or after the
// position following the previous match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Events {
		found := false
		for pos < len(trace) {
			label := trace[pos].Label()
			pos++
			if label == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("%s missing or out of order", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that matching events appear exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.label()),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertDisplayed checks the final ids displayed under a key.
func assertDisplayed(actx *AssertionContext, assertion Assertion) error {
	got, ok := displayedIDs(actx.Session, actx.Specs, assertion.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertDisplayed,
			Expected: fmt.Sprintf("%s to be assigned", assertion.Key),
			Actual:   "not assigned",
		}
	}
	if !slices.Equal(got, assertion.IDs) {
		return &AssertionError{
			Type:     AssertDisplayed,
			Expected: fmt.Sprintf("%s displays %v", assertion.Key, assertion.IDs),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func (a Assertion) label() string {
	if a.Key == "" {
		return a.Event
	}
	return a.Event + ":" + a.Key
}

func displayedIDs(s *live.Session, specs map[string]ir.LiveSpec, key string) ([]string, bool) {
	r, ok := s.Read(key)
	if !ok {
		return nil, false
	}
	return ir.IDs(r.Records(), primaryKey(specs[key])), true
}

// checkExpect compares the value displayed under exp.Key against exp and
// returns one message per mismatch.
func checkExpect(s *live.Session, specs map[string]ir.LiveSpec, fetches map[string]int, exp Expect) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("expect %s: ", exp.Key)+fmt.Sprintf(format, args...))
	}

	r, ok := s.Read(exp.Key)
	if !ok {
		fail("not assigned")
		return errs
	}

	if exp.Shape != "" && r.Shape.String() != exp.Shape {
		fail("shape = %s, want %s", r.Shape, exp.Shape)
	}

	if exp.IDs != nil {
		got, _ := displayedIDs(s, specs, exp.Key)
		if !slices.Equal(got, exp.IDs) {
			fail("ids = %v, want %v", got, exp.IDs)
		}
	}

	if exp.Records != nil {
		recs := r.Records()
		if len(recs) != len(exp.Records) {
			fail("%d records, want %d", len(recs), len(exp.Records))
		} else {
			for i, want := range exp.Records {
				if msg := matchFields(recs[i], want); msg != "" {
					fail("records[%d]: %s", i, msg)
				}
			}
		}
	}

	if exp.Fetches != nil && fetches[exp.Key] != *exp.Fetches {
		fail("fetches = %d, want %d", fetches[exp.Key], *exp.Fetches)
	}

	if exp.More != nil || exp.Count != nil || exp.IsFirst != nil {
		if r.Shape != live.ShapePage {
			fail("page fields on a %s", r.Shape)
			return errs
		}
		p := r.Page
		if exp.More != nil && p.More != *exp.More {
			fail("more = %t, want %t", p.More, *exp.More)
		}
		if exp.IsFirst != nil && p.IsFirst != *exp.IsFirst {
			fail("is_first = %t, want %t", p.IsFirst, *exp.IsFirst)
		}
		if exp.Count != nil {
			switch {
			case p.Count == nil:
				fail("count unset, want %d", *exp.Count)
			case *p.Count != *exp.Count:
				fail("count = %d, want %d", *p.Count, *exp.Count)
			}
		}
	}

	return errs
}

// matchFields checks that rec holds every expected field (subset match).
// Extra fields in rec are ignored.
func matchFields(rec ir.Record, want map[string]interface{}) string {
	for _, field := range sortedKeys(want) {
		expected, err := convertToIRValue(want[field])
		if err != nil {
			return fmt.Sprintf("field %q: %v", field, err)
		}
		actual, ok := rec.Fields[field]
		if !ok {
			return fmt.Sprintf("field %q missing", field)
		}
		if !ir.Equal(actual, expected) {
			return fmt.Sprintf("field %q = %v, want %v", field, ir.ToGo(actual), want[field])
		}
	}
	return ""
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// AssertionContext provides the session for displayed assertions.
type AssertionContext struct {
	Session *live.Session
	Specs   map[string]ir.LiveSpec
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertDisplayed:
			if actx == nil || actx.Session == nil {
				err = fmt.Errorf("assertion[%d]: displayed requires a session", i)
			} else {
				err = assertDisplayed(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
