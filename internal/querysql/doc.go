// Package querysql compiles queryir statements into parameterised SQL for the
// database/sql drivers the store supports.
package querysql
