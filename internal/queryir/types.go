package queryir

import "github.com/roach88/livequery/internal/ir"

// Query represents an abstract query over a record collection.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition over record fields.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal
//   - In: field IN (literals...)
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode()
}

// Select reads records of one collection.
//
// Semantics:
//
//	SELECT * FROM <from> WHERE <filter> ORDER BY <order_by>, <primary key>
//
// Example:
//
//	Select{
//	  From:    "posts",
//	  Filter:  And{Predicates: []Predicate{Equals{Field: "status", Value: ir.IRString("open")}}},
//	  OrderBy: []Order{{Field: "inserted_at", Desc: true}},
//	}
//
// Backends always append the primary key to the ordering so that equal sort
// values still produce a stable order and keyset cursors stay unambiguous.
type Select struct {
	From    string
	Filter  Predicate // nil = no filter
	OrderBy []Order
}

func (Select) queryNode() {}

// Order is one sort column.
type Order struct {
	Field string
	Desc  bool
}

// Equals represents a field-equals-literal predicate.
//
//	Equals{Field: "status", Value: ir.IRString("active")}  ->  status = 'active'
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In represents set membership: the field equals one of Values.
// An empty Values list matches nothing.
//
//	In{Field: "id", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}}  ->  id IN (1, 2)
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates (at least one must be true).
// Empty Predicates means "always false".
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Conjoin combines an existing filter with an extra predicate.
// A nil existing filter yields extra unchanged.
func Conjoin(existing, extra Predicate) Predicate {
	switch {
	case existing == nil:
		return extra
	case extra == nil:
		return existing
	default:
		return And{Predicates: []Predicate{existing, extra}}
	}
}

// MatchKeys builds the predicate selecting exactly the records whose
// primary key is one of keys. A single key field becomes In; composite
// keys become an Or of per-record And(Equals...) terms.
func MatchKeys(fields []string, keys []ir.Key) Predicate {
	if len(fields) == 1 {
		vals := make([]ir.IRValue, len(keys))
		for i, k := range keys {
			vals[i] = k[0]
		}
		return In{Field: fields[0], Values: vals}
	}

	terms := make([]Predicate, len(keys))
	for i, k := range keys {
		eqs := make([]Predicate, len(fields))
		for j, f := range fields {
			eqs[j] = Equals{Field: f, Value: k[j]}
		}
		terms[i] = And{Predicates: eqs}
	}
	return Or{Predicates: terms}
}
