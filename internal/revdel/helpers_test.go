package revdel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/store"
	"github.com/roach88/revdel/internal/visibility"
)

var (
	admin       = visibility.Actor{ID: 1, Name: "Admin", CanViewDeleted: true}
	oversighter = visibility.Actor{ID: 2, Name: "Oversight", CanViewDeleted: true, CanSuppress: true}
	reader      = visibility.Actor{ID: 3, Name: "Reader"}

	pageSubj  = NewSubject(NamespaceMain, "Page")
	goneSubj  = NewSubject(NamespaceMain, "Gone")
	photoSubj = NewSubject(NamespaceFile, "Photo.png")
	lostSubj  = NewSubject(NamespaceFile, "Lost.png")
)

const (
	photoV1 = "20240101000000!Photo.png"
	photoV2 = "20240102000000!Photo.png"
)

// queryRecords resolves ids and fails the test on error.
func queryRecords(t *testing.T, db DB, kind Kind, subject Subject, ids ...string) *RecordSet {
	t.Helper()
	rs, err := NewRecordSet(db, kind, subject, ids)
	require.NoError(t, err)
	require.NoError(t, rs.Query(t.Context()))
	return rs
}

// recordIDs lists the logical ids of records in order.
func recordIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	return ids
}

// rowBits reads one bitmask column straight from the store.
func rowBits(t *testing.T, s *store.Store, table, bitsCol string, filter queryir.Predicate) visibility.Bits {
	t.Helper()
	rows, err := s.Select(t.Context(), queryir.Select{From: table, Columns: []string{bitsCol}, Filter: filter})
	require.NoError(t, err)
	require.Len(t, rows, 1, "%s rows matching filter", table)
	n, err := rows[0].Int64(bitsCol)
	require.NoError(t, err)
	return visibility.Bits(n)
}

func revBits(t *testing.T, s *store.Store, revID int64) visibility.Bits {
	t.Helper()
	return rowBits(t, s, "revision", "rev_deleted", queryir.Eq("rev_id", revID))
}

func archiveBits(t *testing.T, s *store.Store, revID int64) visibility.Bits {
	t.Helper()
	return rowBits(t, s, "archive", "ar_deleted", queryir.Eq("ar_rev_id", revID))
}

func oldImageBits(t *testing.T, s *store.Store, archiveName string) visibility.Bits {
	t.Helper()
	return rowBits(t, s, "oldimage", "oi_deleted", queryir.Eq("oi_archive_name", archiveName))
}

// filterValue returns the value an update's filter requires for field.
func filterValue(u queryir.Update, field string) (any, bool) {
	var find func(p queryir.Predicate) (any, bool)
	find = func(p queryir.Predicate) (any, bool) {
		switch p := p.(type) {
		case queryir.Equals:
			if p.Field == field {
				return p.Value, true
			}
		case queryir.And:
			for _, sub := range p.Predicates {
				if v, ok := find(sub); ok {
					return v, ok
				}
			}
		}
		return nil, false
	}
	return find(u.Filter)
}

// interceptDB runs before on every update, ahead of the wrapped DB.
type interceptDB struct {
	DB
	before func(ctx context.Context, u queryir.Update)
}

func (d *interceptDB) Update(ctx context.Context, u queryir.Update) (int64, error) {
	if d.before != nil {
		d.before(ctx, u)
	}
	return d.DB.Update(ctx, u)
}

// recordingRepo wraps a file repo, logging call order and failing selected
// phases outright.
type recordingRepo struct {
	inner FileRepo

	mu    sync.Mutex
	calls []string

	failStage  bool
	failRemove bool
	failPurge  bool
}

func (r *recordingRepo) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRepo) Stage(ctx context.Context, ops []filestore.StageOp) *filestore.Status {
	r.record(PhaseStage)
	if r.failStage {
		return failAll(filestore.OpStage, len(ops), func(i int) (string, string) { return ops[i].Tag, ops[i].Dst })
	}
	return r.inner.Stage(ctx, ops)
}

func (r *recordingRepo) Remove(ctx context.Context, ops []filestore.DeleteOp) *filestore.Status {
	r.record(PhaseDelete)
	if r.failRemove {
		return failAll(filestore.OpDelete, len(ops), func(i int) (string, string) { return ops[i].Tag, ops[i].Src })
	}
	return r.inner.Remove(ctx, ops)
}

func (r *recordingRepo) Purge(ctx context.Context, ops []filestore.PurgeOp) *filestore.Status {
	r.record(PhaseCleanup)
	if r.failPurge {
		return failAll(filestore.OpPurge, len(ops), func(i int) (string, string) { return ops[i].Tag, ops[i].Key })
	}
	return r.inner.Purge(ctx, ops)
}

var errInjected = errors.New("injected storage failure")

func failAll(op string, n int, at func(int) (string, string)) *filestore.Status {
	st := &filestore.Status{Attempted: n}
	for i := 0; i < n; i++ {
		tag, path := at(i)
		st.Failures = append(st.Failures, filestore.Failure{Op: op, Tag: tag, Path: path, Err: errInjected})
	}
	return st
}

// failingCache fails whichever operations are switched on.
type failingCache struct {
	mu          sync.Mutex
	invalidated []string
	purged      []string

	failInvalidate bool
	failPurge      bool
}

func (c *failingCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInvalidate {
		return context.DeadlineExceeded
	}
	c.invalidated = append(c.invalidated, key)
	return nil
}

func (c *failingCache) Purge(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPurge {
		return context.DeadlineExceeded
	}
	c.purged = append(c.purged, keys...)
	return nil
}
