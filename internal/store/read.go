package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/revdel/internal/queryir"
)

// Select runs q and returns one Row per result, keyed by q.Columns.
//
// Returns an empty slice (not nil) if nothing matched.
func (s *Store) Select(ctx context.Context, q queryir.Select) ([]queryir.Row, error) {
	query, args, err := s.compiler.CompileSelect(q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.From, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.From, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, q.Columns)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.From, err)
	}
	return out, nil
}

// scanRows reads every row into a queryir.Row. Byte slices are copied into
// strings because the driver may reuse the buffer on the next Scan.
func scanRows(rows *sql.Rows, columns []string) ([]queryir.Row, error) {
	out := []queryir.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(queryir.Row, len(columns))
		for i, c := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
