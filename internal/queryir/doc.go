// Package queryir is the abstract select/update representation used by the
// redaction engine to talk to a relational store.
//
// The engine never writes SQL. Each record kind describes the rows it needs as
// a Select and every bit change as an Update, and a backend (internal/querysql
// plus internal/store) turns them into statements.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Only Equals, In and And implement
// it, so backends can switch exhaustively.
//
// WRITES:
//
// Update always carries a filter. An unconditional update is rejected by
// Validate because every bit write in this system is a compare-and-swap: the
// filter names the row's physical key and the bitmask last read.
//
// VALUES:
//
// Literal values are restricted to int, int64, string and bool. Rows coming
// back from a backend hold whatever the driver produced; Row's accessors
// normalise them.
package queryir
