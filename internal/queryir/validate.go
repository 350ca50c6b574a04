package queryir

import (
	"fmt"

	"github.com/roach88/livequery/internal/ir"
)

// ValidationResult reports problems found in a query tree.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid bool

	// Errors lists every problem found, in traversal order.
	Errors []string
}

// Validate checks a query or predicate tree for structural problems:
// missing collection or field names, nil values, nested arrays or objects
// used as comparison literals.
//
// Validate is a pure function with no side effects.
func Validate(node any) ValidationResult {
	v := &validator{errors: []string{}}
	switch n := node.(type) {
	case Query:
		v.validateQuery(n)
	case Predicate:
		v.validatePredicate(n)
	default:
		v.addError("unknown node type: %T", node)
	}

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addError("select has no collection")
	}
	for i, o := range sel.OrderBy {
		if o.Field == "" {
			v.addError("order_by[%d] has no field", i)
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Equals:
		v.validateLiteral(pred.Field, pred.Value)
	case *Equals:
		v.validateLiteral(pred.Field, pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateAll(pred.Predicates)
	case *Or:
		v.validateAll(pred.Predicates)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateIn(in In) {
	for _, val := range in.Values {
		v.validateLiteral(in.Field, val)
	}
	if in.Field == "" && len(in.Values) == 0 {
		v.addError("predicate has no field")
	}
}

func (v *validator) validateAll(preds []Predicate) {
	for _, p := range preds {
		v.validatePredicate(p)
	}
}

func (v *validator) validateLiteral(field string, val ir.IRValue) {
	if field == "" {
		v.addError("predicate has no field")
		return
	}
	switch val.(type) {
	case nil:
		v.addError("field '%s' compared to nil value", field)
	case ir.IRArray, ir.IRObject:
		v.addError("field '%s' compared to %T; only scalars are comparable", field, val)
	}
}
