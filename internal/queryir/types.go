package queryir

// Predicate is a filter condition. Sealed: only this package implements it.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from a single table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Columns must be explicit. OrderBy may be empty, in which case the backend
// orders by the first column ascending so results stay deterministic.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	OrderBy []Order
	Limit   int // 0 = unlimited
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Update writes Set on every row matching Filter.
//
//	UPDATE <table> SET <set> WHERE <filter>
//
// Filter is mandatory.
type Update struct {
	Table  string
	Set    []Assignment
	Filter Predicate
}

// Assignment is one SET term.
type Assignment struct {
	Column string
	Value  any
}

// Equals matches rows whose Field equals Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In matches rows whose Field is one of Values. Values must be non-empty.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Eq is shorthand for Equals{Field: field, Value: value}.
func Eq(field string, value any) Equals {
	return Equals{Field: field, Value: value}
}

// AllOf is shorthand for And{Predicates: preds}.
func AllOf(preds ...Predicate) And {
	return And{Predicates: preds}
}

// InStrings builds an In predicate over string values.
func InStrings(field string, values []string) In {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return In{Field: field, Values: out}
}

// InInts builds an In predicate over int64 values.
func InInts(field string, values []int64) In {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return In{Field: field, Values: out}
}
