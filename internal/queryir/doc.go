// Package queryir provides the abstract filter and query representation
// passed between the live engine and record sources.
//
// The engine never builds SQL. When it needs to narrow a refetch to the
// records currently on screen it builds a queryir predicate (MatchKeys),
// conjoins it with the page's own filter (Conjoin) and hands it back to the
// query callback. Backends such as querysql compile the tree.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed using the marker method pattern. Only types
// in this package implement them, so backend type switches are exhaustive:
//
//	switch p := pred.(type) {
//	case queryir.Equals, queryir.In, queryir.And, queryir.Or:
//	    ...
//	}
//
// Values are ir.IRValue, so filters carry the same exact comparison
// semantics as primary keys.
package queryir
