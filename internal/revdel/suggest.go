package revdel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/queryir"
)

// SuggestTarget returns the subject a redaction of ids should be scoped to.
//
// Log entries that all exist and share one log type move to that type's log
// listing. A revision request without a title takes the title of the page
// owning the first id, live or archived. Everything else keeps subject.
func SuggestTarget(ctx context.Context, db DB, kind Kind, subject Subject, ids []string) (Subject, error) {
	if len(ids) == 0 {
		return subject, nil
	}
	ids, err := canonicalIDs(kind, ids)
	if err != nil {
		return subject, err
	}

	switch kind {
	case KindLog:
		return suggestLogTarget(ctx, db, subject, ids)
	case KindRevision:
		if subject.Title != "" {
			return subject, nil
		}
		return suggestRevisionTarget(ctx, db, subject, ids[0])
	}
	return subject, nil
}

func suggestLogTarget(ctx context.Context, db DB, subject Subject, ids []string) (Subject, error) {
	nums := lo.Map(ids, func(id string, _ int) int64 {
		n, _ := strconv.ParseInt(id, 10, 64)
		return n
	})
	rows, err := db.Select(ctx, queryir.Select{
		From:    "logging",
		Columns: []string{"log_id", "log_type"},
		Filter:  queryir.InInts("log_id", nums),
	})
	if err != nil {
		return subject, fmt.Errorf("failed to query log types: %w", err)
	}
	if len(rows) != len(ids) {
		return subject, nil
	}

	types := make([]string, 0, len(rows))
	for _, row := range rows {
		t, err := row.String("log_type")
		if err != nil {
			return subject, NewIntegrityError("malformed logging row", err)
		}
		types = append(types, t)
	}
	if types = lo.Uniq(types); len(types) != 1 {
		return subject, nil
	}
	return LogSubject(types[0]), nil
}

func suggestRevisionTarget(ctx context.Context, db DB, subject Subject, id string) (Subject, error) {
	revID, _ := strconv.ParseInt(id, 10, 64)

	rows, err := db.Select(ctx, queryir.Select{
		From:    "revision",
		Columns: []string{"rev_page"},
		Filter:  queryir.Eq("rev_id", revID),
		Limit:   1,
	})
	if err != nil {
		return subject, fmt.Errorf("failed to look up revision %s: %w", id, err)
	}
	if len(rows) > 0 {
		pageID, err := rows[0].Int64("rev_page")
		if err != nil {
			return subject, NewIntegrityError("malformed revision row", err)
		}
		pages, err := db.Select(ctx, queryir.Select{
			From:    "page",
			Columns: []string{"page_namespace", "page_title"},
			Filter:  queryir.Eq("page_id", pageID),
			Limit:   1,
		})
		if err != nil {
			return subject, fmt.Errorf("failed to look up page %d: %w", pageID, err)
		}
		if len(pages) > 0 {
			return subjectFromRow(pages[0], "page_namespace", "page_title")
		}
	}

	rows, err = db.Select(ctx, queryir.Select{
		From:    "archive",
		Columns: []string{"ar_namespace", "ar_title"},
		Filter:  queryir.Eq("ar_rev_id", revID),
		Limit:   1,
	})
	if err != nil {
		return subject, fmt.Errorf("failed to look up archived revision %s: %w", id, err)
	}
	if len(rows) > 0 {
		return subjectFromRow(rows[0], "ar_namespace", "ar_title")
	}
	return subject, nil
}

func subjectFromRow(row queryir.Row, nsCol, titleCol string) (Subject, error) {
	r := rowReader{row: row}
	s := Subject{Namespace: int(r.num(nsCol)), Title: r.str(titleCol)}
	if r.err != nil {
		return Subject{}, NewIntegrityError("malformed subject columns", r.err)
	}
	return s, nil
}
