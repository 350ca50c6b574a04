package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/livequery/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// LiveSpec errors (E101-E111)
	ErrLiveKeyInvalid       = "E101" // key must be an identifier
	ErrCollectionEmpty      = "E102" // source.collection is required
	ErrInvalidPaginate      = "E103" // paginate not none/cursor/offset
	ErrInvalidResults       = "E104" // results not keep/lose
	ErrInvalidTopic         = "E105" // empty or duplicate subscribe topic
	ErrNegativeDuration     = "E106" // refetch_interval/refetch_window < 0
	ErrInvalidPrimaryKey    = "E107" // empty or duplicate primary key field
	ErrPaginationConflict   = "E108" // count/limit without paginate, single with paginate
	ErrInvalidOrderField    = "E109" // empty or duplicate order_by field
	ErrDuplicateLiveKey     = "E110" // same key declared twice
	ErrRefetchOptionsUnused = "E111" // interval/window set with refetch disabled
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports LiveSpec and []LiveSpec; a slice is also checked for
// duplicate keys.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.LiveSpec:
		return validateLiveSpec(spec)
	case ir.LiveSpec:
		return validateLiveSpec(&spec)
	case []ir.LiveSpec:
		return validateLiveSpecs(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateLiveSpecs(specs []ir.LiveSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i := range specs {
		spec := &specs[i]
		if seen[spec.Key] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("live[%d].key", i),
				Message: fmt.Sprintf("duplicate live key: %q", spec.Key),
				Code:    ErrDuplicateLiveKey,
			})
		}
		seen[spec.Key] = true
		for _, e := range validateLiveSpec(spec) {
			e.Field = spec.Key + "." + e.Field
			errs = append(errs, e)
		}
	}
	return errs
}

func validateLiveSpec(spec *ir.LiveSpec) []ValidationError {
	var errs []ValidationError

	// E101: key is an identifier
	if !keyPattern.MatchString(spec.Key) {
		errs = append(errs, ValidationError{
			Field:   "key",
			Message: fmt.Sprintf("invalid live key %q, expected an identifier", spec.Key),
			Code:    ErrLiveKeyInvalid,
		})
	}

	errs = append(errs, validateSource(&spec.Source)...)

	// E104
	if spec.Results != ir.ResultsKeep && spec.Results != ir.ResultsLose {
		errs = append(errs, ValidationError{
			Field:   "results",
			Message: fmt.Sprintf("invalid results %q, must be \"keep\" or \"lose\"", spec.Results),
			Code:    ErrInvalidResults,
		})
	}

	// E105: topics non-empty and unique
	topics := make(map[string]bool)
	for i, t := range spec.Subscribe {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subscribe[%d]", i),
				Message: "topic must be non-empty",
				Code:    ErrInvalidTopic,
			})
			continue
		}
		if topics[t] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subscribe[%d]", i),
				Message: fmt.Sprintf("duplicate topic: %q", t),
				Code:    ErrInvalidTopic,
			})
		}
		topics[t] = true
	}

	// E106
	if spec.RefetchInterval < 0 {
		errs = append(errs, ValidationError{
			Field:   "refetch_interval",
			Message: fmt.Sprintf("must not be negative, got %s", spec.RefetchInterval),
			Code:    ErrNegativeDuration,
		})
	}
	if spec.RefetchWindow < 0 {
		errs = append(errs, ValidationError{
			Field:   "refetch_window",
			Message: fmt.Sprintf("must not be negative, got %s", spec.RefetchWindow),
			Code:    ErrNegativeDuration,
		})
	}

	// E111: a window only debounces refetches that happen
	if !spec.Refetch && spec.RefetchWindow > 0 {
		errs = append(errs, ValidationError{
			Field:   "refetch_window",
			Message: "refetch_window has no effect with refetch: false",
			Code:    ErrRefetchOptionsUnused,
		})
	}

	// E107
	if len(spec.PrimaryKey) == 0 {
		errs = append(errs, ValidationError{
			Field:   "primary_key",
			Message: "at least one primary key field is required",
			Code:    ErrInvalidPrimaryKey,
		})
	}
	pk := make(map[string]bool)
	for i, f := range spec.PrimaryKey {
		if strings.TrimSpace(f) == "" || pk[f] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("primary_key[%d]", i),
				Message: fmt.Sprintf("empty or duplicate primary key field %q", f),
				Code:    ErrInvalidPrimaryKey,
			})
		}
		pk[f] = true
	}

	return errs
}

func validateSource(src *ir.SourceSpec) []ValidationError {
	var errs []ValidationError

	// E102
	if strings.TrimSpace(src.Collection) == "" {
		errs = append(errs, ValidationError{
			Field:   "source.collection",
			Message: "collection is required and must be non-empty",
			Code:    ErrCollectionEmpty,
		})
	}

	// E103
	switch src.Paginate {
	case ir.PaginateNone, ir.PaginateCursor, ir.PaginateOffset:
	default:
		errs = append(errs, ValidationError{
			Field:   "source.paginate",
			Message: fmt.Sprintf("invalid paginate %q, must be \"none\", \"cursor\", or \"offset\"", src.Paginate),
			Code:    ErrInvalidPaginate,
		})
	}

	// E108
	paged := src.Paginate == ir.PaginateCursor || src.Paginate == ir.PaginateOffset
	if src.Single && paged {
		errs = append(errs, ValidationError{
			Field:   "source.single",
			Message: "single cannot be combined with paginate",
			Code:    ErrPaginationConflict,
		})
	}
	if !paged && src.Count {
		errs = append(errs, ValidationError{
			Field:   "source.count",
			Message: "count requires paginate \"cursor\" or \"offset\"",
			Code:    ErrPaginationConflict,
		})
	}
	if !paged && src.Limit > 0 {
		errs = append(errs, ValidationError{
			Field:   "source.limit",
			Message: "limit requires paginate \"cursor\" or \"offset\"",
			Code:    ErrPaginationConflict,
		})
	}

	// E109
	fields := make(map[string]bool)
	for i, o := range src.OrderBy {
		if strings.TrimSpace(o.Field) == "" || fields[o.Field] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("source.order_by[%d]", i),
				Message: fmt.Sprintf("empty or duplicate order field %q", o.Field),
				Code:    ErrInvalidOrderField,
			})
		}
		fields[o.Field] = true
	}

	return errs
}

// keyPattern matches assignment keys: a letter or underscore, then
// letters, digits, underscores or dashes.
var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
