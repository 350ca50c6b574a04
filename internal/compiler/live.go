package compiler

import (
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/livequery/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// CompileLive parses one live declaration into a LiveSpec.
// The declaration is unified with the #Live schema first, so defaults are
// filled in and unknown fields are rejected.
//
// The CUE value should be the declaration struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`live: posts: { source: collection: "posts" }`)
//	spec, err := CompileLive(v.LookupPath(cue.ParsePath("live.posts")))
func CompileLive(v cue.Value) (*ir.LiveSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile live schema: %w", err)
	}
	u := schema.LookupPath(cue.ParsePath("#Live")).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.LiveSpec{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		spec.Key = unquote(sels[len(sels)-1].String())
	}

	var err error
	if spec.Source, err = parseSource(u.LookupPath(cue.ParsePath("source"))); err != nil {
		return nil, err
	}
	if spec.Subscribe, err = parseTopics(u.LookupPath(cue.ParsePath("subscribe"))); err != nil {
		return nil, err
	}
	if spec.Refetch, err = u.LookupPath(cue.ParsePath("refetch")).Bool(); err != nil {
		return nil, formatCUEError(err)
	}
	if spec.Results, err = u.LookupPath(cue.ParsePath("results")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if spec.LoadUntilConnected, err = u.LookupPath(cue.ParsePath("load_until_connected")).Bool(); err != nil {
		return nil, formatCUEError(err)
	}
	if spec.RefetchInterval, err = parseDuration(u.LookupPath(cue.ParsePath("refetch_interval")), "refetch_interval"); err != nil {
		return nil, err
	}
	if spec.RefetchWindow, err = parseDuration(u.LookupPath(cue.ParsePath("refetch_window")), "refetch_window"); err != nil {
		return nil, err
	}
	if spec.PrimaryKey, err = parseStrings(u.LookupPath(cue.ParsePath("primary_key"))); err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileAll compiles every declaration under the top-level live field,
// in source order. A value without a live field yields no specs.
func CompileAll(v cue.Value) ([]ir.LiveSpec, error) {
	liveVal := v.LookupPath(cue.ParsePath("live"))
	if !liveVal.Exists() {
		return nil, nil
	}
	iter, err := liveVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.LiveSpec
	for iter.Next() {
		spec, err := CompileLive(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("live.%s: %w", iter.Selector(), err)
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

func parseSource(v cue.Value) (ir.SourceSpec, error) {
	var src ir.SourceSpec
	var err error

	if src.Collection, err = v.LookupPath(cue.ParsePath("collection")).String(); err != nil {
		return src, formatCUEError(err)
	}
	if src.Paginate, err = v.LookupPath(cue.ParsePath("paginate")).String(); err != nil {
		return src, formatCUEError(err)
	}
	if src.Count, err = v.LookupPath(cue.ParsePath("count")).Bool(); err != nil {
		return src, formatCUEError(err)
	}
	if src.Single, err = v.LookupPath(cue.ParsePath("single")).Bool(); err != nil {
		return src, formatCUEError(err)
	}

	if limitVal := v.LookupPath(cue.ParsePath("limit")); limitVal.Exists() {
		n, err := limitVal.Int64()
		if err != nil {
			return src, formatCUEError(err)
		}
		src.Limit = int(n)
	}

	if whereVal := v.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
		src.Where = ir.IRObject{}
		iter, err := whereVal.Fields()
		if err != nil {
			return src, formatCUEError(err)
		}
		for iter.Next() {
			val, err := scalar(iter.Value())
			if err != nil {
				return src, err
			}
			src.Where[unquote(iter.Selector().String())] = val
		}
	}

	if orderVal := v.LookupPath(cue.ParsePath("order_by")); orderVal.Exists() {
		iter, err := orderVal.List()
		if err != nil {
			return src, formatCUEError(err)
		}
		for iter.Next() {
			field, err := iter.Value().LookupPath(cue.ParsePath("field")).String()
			if err != nil {
				return src, formatCUEError(err)
			}
			desc, err := iter.Value().LookupPath(cue.ParsePath("desc")).Bool()
			if err != nil {
				return src, formatCUEError(err)
			}
			src.OrderBy = append(src.OrderBy, ir.OrderField{Field: field, Desc: desc})
		}
	}

	return src, nil
}

// parseTopics accepts a single topic or a list of topics.
func parseTopics(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	return parseStrings(v)
}

func parseStrings(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseDuration accepts a Go duration string ("250ms", "1m") or an
// integer number of milliseconds.
func parseDuration(v cue.Value, field string) (time.Duration, error) {
	if !v.Exists() {
		return 0, nil
	}
	if n, err := v.Int64(); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	s, err := v.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q", s),
			Pos:     v.Pos(),
		}
	}
	return d, nil
}

// scalar converts a concrete CUE scalar to an IRValue.
func scalar(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "where",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "where",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// unquote strips the quotes CUE puts around labels that are not
// identifiers, e.g. "posts-by-author".
func unquote(label string) string {
	if s, err := strconv.Unquote(label); err == nil {
		return s
	}
	return label
}
