package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/revdel/internal/queryir"
)

// Dialect selects the placeholder style.
type Dialect int

const (
	// DialectQuestion uses ? placeholders (sqlite, mysql).
	DialectQuestion Dialect = iota
	// DialectDollar uses $1, $2, ... placeholders (postgres).
	DialectDollar
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) Dialect {
	switch driver {
	case "pgx", "postgres":
		return DialectDollar
	default:
		return DialectQuestion
	}
}

// SQLCompiler compiles queryir statements to parameterised SQL.
//
// CRITICAL: every SELECT carries an ORDER BY, so results never depend on the
// engine's physical row order.
// CRITICAL: values are always parameterised, never interpolated.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for dialect.
func NewSQLCompiler(dialect Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: dialect}
}

// args accumulates parameters and renders placeholders in order.
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	if a.dialect == DialectDollar {
		return "$" + strconv.Itoa(len(a.values))
	}
	return "?"
}

// CompileSelect converts a Select to (sql, params).
func (c *SQLCompiler) CompileSelect(q queryir.Select) (string, []any, error) {
	if err := queryir.ValidateSelect(q); err != nil {
		return "", nil, err
	}

	a := &args{dialect: c.Dialect}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	if q.Filter != nil {
		where, err := c.compilePredicate(q.Filter, a)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(c.orderClause(q))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	return b.String(), a.values, nil
}

// CompileUpdate converts an Update to (sql, params).
func (c *SQLCompiler) CompileUpdate(u queryir.Update) (string, []any, error) {
	if err := queryir.ValidateUpdate(u); err != nil {
		return "", nil, err
	}

	a := &args{dialect: c.Dialect}
	sets := make([]string, 0, len(u.Set))
	for _, as := range u.Set {
		sets = append(sets, fmt.Sprintf("%s = %s", as.Column, a.add(as.Value)))
	}

	where, err := c.compilePredicate(u.Filter, a)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", u.Table, strings.Join(sets, ", "), where)
	return sql, a.values, nil
}

// orderClause renders ORDER BY terms, defaulting to the first column.
func (c *SQLCompiler) orderClause(q queryir.Select) string {
	order := q.OrderBy
	if len(order) == 0 {
		order = []queryir.Order{queryir.Asc(q.Columns[0])}
	}
	parts := make([]string, len(order))
	for i, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = o.Column + " " + dir
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate, a *args) (string, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return fmt.Sprintf("%s = %s", pred.Field, a.add(pred.Value)), nil
	case queryir.In:
		holders := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			holders[i] = a.add(v)
		}
		return fmt.Sprintf("%s IN (%s)", pred.Field, strings.Join(holders, ", ")), nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			s, err := c.compilePredicate(sub, a)
			if err != nil {
				return "", err
			}
			if _, nested := sub.(queryir.And); nested {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " AND "), nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}
