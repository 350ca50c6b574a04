package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQLite SQL over the
// records table, where each row stores one record as a JSON document.
//
// CRITICAL: Every query has an ORDER BY ending in the primary key so
// results are deterministic and keyset cursors are unambiguous.
// CRITICAL: Values are always parameterized, never interpolated. Field
// names are interpolated only after passing identifier validation.
type SQLCompiler struct {
	// Table is the records table name.
	Table string

	// PrimaryKey lists the record fields that identify a row.
	// Appended to every ordering as the tiebreaker.
	PrimaryKey []string
}

// NewSQLCompiler creates a compiler for the default records table.
func NewSQLCompiler(primaryKey []string) *SQLCompiler {
	return &SQLCompiler{
		Table:      "records",
		PrimaryKey: primaryKey,
	}
}

// Window restricts a Select to one page.
//
// After and Before are decoded keyset positions: the ordering values of
// the boundary record followed by its primary key, in the same order as
// Ordering returns. At most one may be set. Limit 0 means unlimited.
type Window struct {
	After  []ir.IRValue
	Before []ir.IRValue
	Offset int
	Limit  int
}

// Compiled is a ready-to-run statement.
type Compiled struct {
	SQL    string
	Params []any

	// Reversed is set when rows come back in reverse display order
	// (a Before window) and must be flipped by the caller.
	Reversed bool
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile converts a query to SQL returning every matching row.
func (c *SQLCompiler) Compile(q queryir.Query) (Compiled, error) {
	sel, err := asSelect(q)
	if err != nil {
		return Compiled{}, err
	}
	return c.CompilePage(sel, Window{})
}

// CompilePage compiles a Select restricted to a window.
func (c *SQLCompiler) CompilePage(sel queryir.Select, w Window) (Compiled, error) {
	if len(w.After) > 0 && len(w.Before) > 0 {
		return Compiled{}, fmt.Errorf("window cannot have both after and before")
	}

	where, params, err := c.baseWhere(sel)
	if err != nil {
		return Compiled{}, err
	}

	order, err := c.Ordering(sel)
	if err != nil {
		return Compiled{}, err
	}

	reversed := len(w.Before) > 0
	position := w.After
	if reversed {
		position = w.Before
		order = flip(order)
	}

	if len(position) > 0 {
		if len(position) != len(order) {
			return Compiled{}, fmt.Errorf("cursor has %d values, ordering has %d", len(position), len(order))
		}
		frag, fragParams, err := c.compileAfter(order, position)
		if err != nil {
			return Compiled{}, fmt.Errorf("compile cursor: %w", err)
		}
		where += " AND " + frag
		params = append(params, fragParams...)
	}

	sql := fmt.Sprintf("SELECT data FROM %s WHERE %s ORDER BY %s", c.Table, where, c.orderBy(order))

	if w.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, w.Limit)
		if w.Offset > 0 {
			sql += " OFFSET ?"
			params = append(params, w.Offset)
		}
	} else if w.Offset > 0 {
		sql += " LIMIT -1 OFFSET ?"
		params = append(params, w.Offset)
	}

	return Compiled{SQL: sql, Params: params, Reversed: reversed}, nil
}

// CompileCount compiles a COUNT(*) over the Select's filter, ignoring any window.
func (c *SQLCompiler) CompileCount(sel queryir.Select) (Compiled, error) {
	where, params, err := c.baseWhere(sel)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{
		SQL:    fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.Table, where),
		Params: params,
	}, nil
}

// Ordering returns the full sort order for sel: its OrderBy columns
// followed by any primary key fields not already listed, ascending.
func (c *SQLCompiler) Ordering(sel queryir.Select) ([]queryir.Order, error) {
	if len(c.PrimaryKey) == 0 {
		return nil, fmt.Errorf("no primary key fields")
	}

	seen := make(map[string]bool, len(sel.OrderBy)+len(c.PrimaryKey))
	order := make([]queryir.Order, 0, len(sel.OrderBy)+len(c.PrimaryKey))
	for _, o := range sel.OrderBy {
		if err := checkIdent(o.Field); err != nil {
			return nil, err
		}
		if seen[o.Field] {
			continue
		}
		seen[o.Field] = true
		order = append(order, o)
	}
	for _, f := range c.PrimaryKey {
		if err := checkIdent(f); err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			order = append(order, queryir.Order{Field: f})
		}
	}
	return order, nil
}

func (c *SQLCompiler) baseWhere(sel queryir.Select) (string, []any, error) {
	if sel.From == "" {
		return "", nil, fmt.Errorf("select has no collection")
	}
	where := "collection = ?"
	params := []any{sel.From}
	if sel.Filter != nil {
		frag, fragParams, err := c.compilePredicate(sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + frag
		params = append(params, fragParams...)
	}
	return where, params, nil
}

func (c *SQLCompiler) orderBy(order []queryir.Order) string {
	parts := make([]string, len(order))
	for i, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = field(o.Field) + " " + dir
	}
	return strings.Join(parts, ", ")
}

// compileAfter builds the "strictly after position" condition for a
// possibly mixed-direction ordering as an expanded disjunction:
//
//	(a > ?) OR (a IS ? AND b > ?) OR (a IS ? AND b IS ? AND c > ?)
//
// NULL sorts first ascending and last descending, matching SQLite.
func (c *SQLCompiler) compileAfter(order []queryir.Order, position []ir.IRValue) (string, []any, error) {
	var terms []string
	var params []any

	for i := range order {
		var conj []string
		var conjParams []any
		for j := 0; j < i; j++ {
			p, err := toParam(position[j])
			if err != nil {
				return "", nil, err
			}
			conj = append(conj, field(order[j].Field)+" IS ?")
			conjParams = append(conjParams, p)
		}

		cmp, cmpParams, err := strictlyAfter(order[i], position[i])
		if err != nil {
			return "", nil, err
		}
		conj = append(conj, cmp)
		conjParams = append(conjParams, cmpParams...)

		terms = append(terms, "("+strings.Join(conj, " AND ")+")")
		params = append(params, conjParams...)
	}

	return "(" + strings.Join(terms, " OR ") + ")", params, nil
}

func strictlyAfter(o queryir.Order, v ir.IRValue) (string, []any, error) {
	col := field(o.Field)
	_, isNull := v.(ir.IRNull)
	if v == nil {
		isNull = true
	}

	switch {
	case isNull && !o.Desc:
		return col + " IS NOT NULL", nil, nil
	case isNull && o.Desc:
		return "0", nil, nil
	}

	p, err := toParam(v)
	if err != nil {
		return "", nil, err
	}
	if o.Desc {
		return "(" + col + " < ? OR " + col + " IS NULL)", []any{p}, nil
	}
	return col + " > ?", []any{p}, nil
}

func flip(order []queryir.Order) []queryir.Order {
	out := make([]queryir.Order, len(order))
	for i, o := range order {
		out[i] = queryir.Order{Field: o.Field, Desc: !o.Desc}
	}
	return out
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1", nil, nil
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.In:
		return compileIn(pred)
	case *queryir.In:
		return compileIn(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	if err := checkIdent(eq.Field); err != nil {
		return "", nil, err
	}
	if _, isNull := eq.Value.(ir.IRNull); isNull || eq.Value == nil {
		return field(eq.Field) + " IS NULL", nil, nil
	}
	p, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return field(eq.Field) + " = ?", []any{p}, nil
}

func compileIn(in queryir.In) (string, []any, error) {
	if err := checkIdent(in.Field); err != nil {
		return "", nil, err
	}
	if len(in.Values) == 0 {
		return "0", nil, nil
	}
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		p, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value %d: %w", i, err)
		}
		params[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return field(in.Field) + " IN (" + placeholders + ")", params, nil
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// field renders the JSON path expression for a validated field name.
func field(name string) string {
	return "json_extract(data, '$." + name + "')"
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

func asSelect(q queryir.Query) (queryir.Select, error) {
	switch query := q.(type) {
	case queryir.Select:
		return query, nil
	case *queryir.Select:
		if query == nil {
			return queryir.Select{}, fmt.Errorf("cannot compile nil query")
		}
		return *query, nil
	case nil:
		return queryir.Select{}, fmt.Errorf("cannot compile nil query")
	default:
		return queryir.Select{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

// toParam converts a scalar IRValue to a SQL parameter.
// Booleans become 0/1 because json_extract reports JSON booleans as integers.
func toParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.IRNull, nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%T cannot be used as a SQL parameter", v)
	}
}
