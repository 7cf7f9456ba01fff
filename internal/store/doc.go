// Package store is the relational backend of the redaction engine.
//
// It implements the engine's select/update primitive over database/sql:
// queryir statements are compiled by internal/querysql and executed here. The
// default backend is SQLite (mattn/go-sqlite3, or modernc.org/sqlite under the
// "sqlite" driver name); MySQL and Postgres (pgx) databases carrying the wiki
// schema are supported through OpenDriver.
//
// # Critical Patterns
//
// Compare-and-swap writes
//   - Update reports RowsAffected unchanged; callers filter on the bitmask
//     they last read and treat zero rows as a lost update
//   - Update never runs without a filter (rejected by queryir validation)
//
// Deterministic query results
//   - Every compiled SELECT carries an ORDER BY
//   - Select returns an empty slice, never nil
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The Insert* writers exist for seeding fixtures and scenarios; the engine
// itself only ever calls Select and Update.
package store
