package queryir

import (
	"errors"
	"fmt"
	"regexp"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid query")

// ValidateSelect checks a Select before it reaches a backend.
//
// Identifiers are spliced into SQL text by backends, so they must be plain
// names; values are always parameterised and only need a supported type.
func ValidateSelect(s Select) error {
	v := &validator{}
	v.ident("table", s.From)
	if len(s.Columns) == 0 {
		v.fail("select from %s: explicit columns required", s.From)
	}
	for _, c := range s.Columns {
		v.ident("column", c)
	}
	for _, o := range s.OrderBy {
		v.ident("order column", o.Column)
	}
	if s.Limit < 0 {
		v.fail("negative limit %d", s.Limit)
	}
	if s.Filter != nil {
		v.predicate(s.Filter)
	}
	return v.err()
}

// ValidateUpdate checks an Update. A missing or vacuous filter is rejected.
func ValidateUpdate(u Update) error {
	v := &validator{}
	v.ident("table", u.Table)
	if len(u.Set) == 0 {
		v.fail("update %s: nothing to set", u.Table)
	}
	for _, a := range u.Set {
		v.ident("column", a.Column)
		v.value(a.Column, a.Value)
	}
	if u.Filter == nil || isVacuous(u.Filter) {
		v.fail("update %s: a filter is required", u.Table)
	} else {
		v.predicate(u.Filter)
	}
	return v.err()
}

type validator struct {
	problems []string
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalid, v.problems)
}

func (v *validator) ident(what, name string) {
	if !identifier.MatchString(name) {
		v.fail("%s name %q is not a plain identifier", what, name)
	}
}

func (v *validator) value(field string, val any) {
	switch val.(type) {
	case int, int64, string, bool:
	default:
		v.fail("field %s: unsupported value type %T", field, val)
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.ident("column", pred.Field)
		v.value(pred.Field, pred.Value)
	case In:
		v.ident("column", pred.Field)
		if len(pred.Values) == 0 {
			v.fail("field %s: IN with no values", pred.Field)
		}
		for _, val := range pred.Values {
			v.value(pred.Field, val)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.fail("unsupported predicate type %T", p)
	}
}

func isVacuous(p Predicate) bool {
	and, ok := p.(And)
	if !ok {
		return false
	}
	for _, sub := range and.Predicates {
		if !isVacuous(sub) {
			return false
		}
	}
	return true
}
