package revdel

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/queryir"
)

// RecordSet is the ordered view of the records a request names.
//
// Records come back newest first with each logical id at most once. For the
// revision kind the view merges the live revision table and the archive.
type RecordSet struct {
	db      DB
	kind    Kind
	subject Subject
	ids     []string

	records []Record
	queried bool

	page        *pageRow
	pageLoaded  bool
	current     string
	currentRead bool
}

type pageRow struct {
	id     int64
	latest int64
}

// NewRecordSet validates ids for kind and returns an unqueried set. Ids are
// canonicalised (see Kind.CanonicalID) and duplicates dropped, keeping
// first-seen order.
func NewRecordSet(db DB, kind Kind, subject Subject, ids []string) (*RecordSet, error) {
	if !kind.valid() {
		return nil, NewInvalidRequestError("unknown kind %q", kind)
	}
	if len(ids) == 0 {
		return nil, NewInvalidRequestError("no ids given")
	}
	canonical, err := canonicalIDs(kind, ids)
	if err != nil {
		return nil, err
	}
	return &RecordSet{
		db:      db,
		kind:    kind,
		subject: subject,
		ids:     canonical,
	}, nil
}

// Kind returns the record kind of the set.
func (s *RecordSet) Kind() Kind { return s.kind }

// Subject returns the subject the set is scoped to.
func (s *RecordSet) Subject() Subject { return s.subject }

// IDs returns the de-duplicated requested ids.
func (s *RecordSet) IDs() []string { return append([]string(nil), s.ids...) }

// Records returns the resolved records. It is empty before Query.
func (s *RecordSet) Records() []Record { return append([]Record(nil), s.records...) }

// Missing returns the requested ids that resolved to no row.
func (s *RecordSet) Missing() []string {
	if !s.queried {
		return nil
	}
	found := lo.SliceToMap(s.records, func(r Record) (string, struct{}) { return r.ID(), struct{}{} })
	return lo.Filter(s.ids, func(id string, _ int) bool {
		_, ok := found[id]
		return !ok
	})
}

// Query resolves the set's records. Calling it again re-reads the store.
func (s *RecordSet) Query(ctx context.Context) error {
	var (
		records []Record
		err     error
	)
	switch s.kind {
	case KindRevision:
		records, err = s.queryRevisions(ctx)
	case KindArchive:
		records, err = s.queryArchive(ctx)
	case KindOldImage:
		records, err = s.querySingle(ctx, queryir.Select{
			From:    "oldimage",
			Columns: oldImageColumns,
			Filter: queryir.AllOf(
				queryir.Eq("oi_name", s.subject.Title),
				queryir.InStrings("oi_archive_name", s.ids),
			),
			OrderBy: []queryir.Order{queryir.Desc("oi_timestamp")},
		})
	case KindFileArchive:
		records, err = s.querySingle(ctx, queryir.Select{
			From:    "filearchive",
			Columns: fileArchiveColumns,
			Filter: queryir.AllOf(
				queryir.Eq("fa_name", s.subject.Title),
				queryir.InInts("fa_id", s.numericIDs()),
			),
			OrderBy: []queryir.Order{queryir.Desc("fa_id")},
		})
	case KindLog:
		preds := []queryir.Predicate{queryir.InInts("log_id", s.numericIDs())}
		if !s.subject.IsLogTarget() {
			preds = append(preds,
				queryir.Eq("log_namespace", s.subject.Namespace),
				queryir.Eq("log_title", s.subject.Title))
		}
		records, err = s.querySingle(ctx, queryir.Select{
			From:    "logging",
			Columns: logColumns,
			Filter:  queryir.And{Predicates: preds},
			OrderBy: []queryir.Order{queryir.Desc("log_id")},
		})
	default:
		return NewInvalidRequestError("unknown kind %q", s.kind)
	}
	if err != nil {
		return err
	}

	s.records = records
	s.queried = true
	log.Debug(ctx, "record set queried",
		log.String("kind", string(s.kind)),
		log.String("subject", s.subject.String()),
		log.Int("requested", len(s.ids)),
		log.Int("found", len(records)))
	return nil
}

// Current returns the logical id of the subject's current revision, or ""
// when the subject has no live page. Only the revision kind has a current
// version; other kinds always return "". The value is read once and cached.
func (s *RecordSet) Current(ctx context.Context) (string, error) {
	if s.kind != KindRevision {
		return "", nil
	}
	if s.currentRead {
		return s.current, nil
	}
	page, err := s.loadPage(ctx)
	if err != nil {
		return "", err
	}
	if page != nil && page.latest > 0 {
		s.current = strconv.FormatInt(page.latest, 10)
	}
	s.currentRead = true
	return s.current, nil
}

func (s *RecordSet) loadPage(ctx context.Context) (*pageRow, error) {
	if s.pageLoaded {
		return s.page, nil
	}
	rows, err := s.db.Select(ctx, queryir.Select{
		From:    "page",
		Columns: []string{"page_id", "page_latest"},
		Filter: queryir.AllOf(
			queryir.Eq("page_namespace", s.subject.Namespace),
			queryir.Eq("page_title", s.subject.Title),
		),
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up page %s: %w", s.subject, err)
	}
	s.pageLoaded = true
	if len(rows) == 0 {
		return nil, nil
	}
	id, err := rows[0].Int64("page_id")
	if err != nil {
		return nil, NewIntegrityError("malformed page row", err)
	}
	latest, err := rows[0].Int64("page_latest")
	if err != nil {
		return nil, NewIntegrityError("malformed page row", err)
	}
	s.page = &pageRow{id: id, latest: latest}
	return s.page, nil
}

// queryRevisions reads the live table first and falls back to the archive
// for ids the live table lacks.
func (s *RecordSet) queryRevisions(ctx context.Context) ([]Record, error) {
	page, err := s.loadPage(ctx)
	if err != nil {
		return nil, err
	}

	var live []Record
	if page != nil {
		live, err = s.querySingle(ctx, queryir.Select{
			From:    "revision",
			Columns: revisionColumns,
			Filter: queryir.AllOf(
				queryir.Eq("rev_page", page.id),
				queryir.InInts("rev_id", s.numericIDs()),
			),
			OrderBy: []queryir.Order{queryir.Desc("rev_id")},
		})
		if err != nil {
			return nil, err
		}
		if len(live) == len(s.ids) {
			return live, nil
		}
	}

	archived, err := s.querySingle(ctx, queryir.Select{
		From:    "archive",
		Columns: archiveColumns,
		Filter: queryir.AllOf(
			queryir.Eq("ar_namespace", s.subject.Namespace),
			queryir.Eq("ar_title", s.subject.Title),
			queryir.InInts("ar_rev_id", s.numericIDs()),
		),
		OrderBy: []queryir.Order{queryir.Desc("ar_rev_id")},
	})
	if err != nil {
		return nil, err
	}

	switch {
	case len(archived) == 0:
		return live, nil
	case len(live) == 0:
		return archived, nil
	}
	return mergeByID(live, archived), nil
}

// mergeByID folds live then archived into one record per logical id, the
// archived row winning a collision, ordered by descending numeric id.
func mergeByID(live, archived []Record) []Record {
	byID := make(map[string]Record, len(live)+len(archived))
	for _, r := range live {
		byID[r.ID()] = r
	}
	for _, r := range archived {
		byID[r.ID()] = r
	}
	merged := lo.Values(byID)
	slices.SortFunc(merged, func(a, b Record) int {
		x, _ := strconv.ParseInt(a.ID(), 10, 64)
		y, _ := strconv.ParseInt(b.ID(), 10, 64)
		switch {
		case x > y:
			return -1
		case x < y:
			return 1
		}
		return 0
	})
	return merged
}

// queryArchive reads archived rows by timestamp. Two rows can share a
// timestamp; the one with the highest revision number is kept.
func (s *RecordSet) queryArchive(ctx context.Context) ([]Record, error) {
	records, err := s.querySingle(ctx, queryir.Select{
		From:    "archive",
		Columns: archiveColumns,
		Filter: queryir.AllOf(
			queryir.Eq("ar_namespace", s.subject.Namespace),
			queryir.Eq("ar_title", s.subject.Title),
			queryir.InStrings("ar_timestamp", s.ids),
		),
		OrderBy: []queryir.Order{queryir.Desc("ar_timestamp"), queryir.Desc("ar_rev_id")},
	})
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(records, func(r Record) string { return r.ID() }), nil
}

func (s *RecordSet) querySingle(ctx context.Context, q queryir.Select) ([]Record, error) {
	rows, err := s.db.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.From, err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := newItem(s.db, s.kind, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// numericIDs converts the requested ids; NewRecordSet already validated them.
func (s *RecordSet) numericIDs() []int64 {
	return lo.Map(s.ids, func(id string, _ int) int64 {
		n, _ := strconv.ParseInt(id, 10, 64)
		return n
	})
}
