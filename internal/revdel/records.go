package revdel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/visibility"
)

// Columns read for each source table.
var (
	revisionColumns = []string{
		"rev_id", "rev_page", "rev_timestamp", "rev_user", "rev_user_text", "rev_comment", "rev_deleted",
	}
	archiveColumns = []string{
		"ar_namespace", "ar_title", "ar_rev_id", "ar_timestamp", "ar_user", "ar_user_text", "ar_comment", "ar_deleted",
	}
	oldImageColumns = []string{
		"oi_name", "oi_archive_name", "oi_timestamp", "oi_user", "oi_user_text", "oi_description", "oi_sha1", "oi_deleted",
	}
	fileArchiveColumns = []string{
		"fa_id", "fa_name", "fa_storage_key", "fa_timestamp", "fa_user", "fa_user_text", "fa_description", "fa_deleted",
	}
	logColumns = []string{
		"log_id", "log_type", "log_action", "log_timestamp", "log_user", "log_user_text",
		"log_namespace", "log_title", "log_comment", "log_deleted",
	}
)

// liveRevision is a revision row of an existing page.
type liveRevision struct {
	entry
	db     DB
	revID  int64
	pageID int64
}

func (r *liveRevision) Kind() Kind { return KindRevision }

func (r *liveRevision) SetBits(ctx context.Context, _ *Batch, newBits visibility.Bits) (bool, error) {
	ok, err := r.compareAndSwap(ctx, r.db, "revision", "rev_deleted", []queryir.Predicate{
		queryir.Eq("rev_id", r.revID),
		queryir.Eq("rev_page", r.pageID),
	}, newBits)
	if err != nil || !ok {
		return ok, err
	}
	updateRecentChanges(ctx, r.db, r.id, []queryir.Predicate{
		queryir.Eq("rc_cur_id", r.pageID),
		queryir.Eq("rc_this_oldid", r.revID),
		queryir.Eq("rc_timestamp", r.timestamp),
	}, newBits)
	return true, nil
}

// archivedRow is an archive table row; the two archive-backed kinds differ
// only in which column is their logical id.
type archivedRow struct {
	entry
	db        DB
	namespace int
	title     string
	revID     int64
}

// SetBits matches the archive row on its full composite key.
func (a *archivedRow) SetBits(ctx context.Context, _ *Batch, newBits visibility.Bits) (bool, error) {
	return a.compareAndSwap(ctx, a.db, "archive", "ar_deleted", []queryir.Predicate{
		queryir.Eq("ar_namespace", a.namespace),
		queryir.Eq("ar_title", a.title),
		queryir.Eq("ar_timestamp", a.timestamp),
		queryir.Eq("ar_rev_id", a.revID),
	}, newBits)
}

// archivedRevision is an archive row reached through its revision number.
type archivedRevision struct {
	archivedRow
}

func (a *archivedRevision) Kind() Kind { return KindRevision }

// archiveEntry is an archive row reached through its timestamp.
type archiveEntry struct {
	archivedRow
}

func (a *archiveEntry) Kind() Kind { return KindArchive }

// oldImage is a superseded version of an existing file.
type oldImage struct {
	entry
	db          DB
	name        string
	archiveName string
	sha1        string
}

func (o *oldImage) Kind() Kind { return KindOldImage }

// SetBits flips the row and, when the content bit moved, plans the file
// migration on batch. Nothing is planned for a lost compare-and-swap.
func (o *oldImage) SetBits(ctx context.Context, batch *Batch, newBits visibility.Bits) (bool, error) {
	old := o.bits
	ok, err := o.compareAndSwap(ctx, o.db, "oldimage", "oi_deleted", []queryir.Predicate{
		queryir.Eq("oi_name", o.name),
		queryir.Eq("oi_timestamp", o.timestamp),
	}, newBits)
	if err != nil || !ok {
		return ok, err
	}
	if batch != nil {
		batch.planFile(fileVersion{
			id:          o.id,
			name:        o.name,
			archiveName: o.archiveName,
			sha1:        o.sha1,
		}, old, newBits)
	}
	return true, nil
}

// fileArchiveEntry is a version of a deleted file. Its bytes already live in
// the deleted zone, so no migration is needed.
type fileArchiveEntry struct {
	entry
	db         DB
	faID       int64
	name       string
	storageKey string
}

func (f *fileArchiveEntry) Kind() Kind { return KindFileArchive }

func (f *fileArchiveEntry) SetBits(ctx context.Context, _ *Batch, newBits visibility.Bits) (bool, error) {
	return f.compareAndSwap(ctx, f.db, "filearchive", "fa_deleted", []queryir.Predicate{
		queryir.Eq("fa_id", f.faID),
	}, newBits)
}

// logEntry is a row of the logging table.
type logEntry struct {
	entry
	db        DB
	logID     int64
	logType   string
	action    string
	namespace int
	title     string
}

func (l *logEntry) Kind() Kind { return KindLog }

func (l *logEntry) SetBits(ctx context.Context, _ *Batch, newBits visibility.Bits) (bool, error) {
	ok, err := l.compareAndSwap(ctx, l.db, "logging", "log_deleted", []queryir.Predicate{
		queryir.Eq("log_id", l.logID),
	}, newBits)
	if err != nil || !ok {
		return ok, err
	}
	updateRecentChanges(ctx, l.db, l.id, []queryir.Predicate{
		queryir.Eq("rc_logid", l.logID),
		queryir.Eq("rc_timestamp", l.timestamp),
	}, newBits)
	return true, nil
}

// newItem materialises the record variant matching row's identity column.
// A row carrying none of the known identity columns is an integrity fault.
func newItem(db DB, kind Kind, row queryir.Row) (Record, error) {
	r := rowReader{row: row}
	var rec Record
	switch {
	case row.Has("rev_id"):
		lr := &liveRevision{db: db, revID: r.num("rev_id"), pageID: r.num("rev_page")}
		lr.entry = r.entry("rev_timestamp", "rev_user", "rev_user_text", "rev_comment", "rev_deleted")
		lr.id = strconv.FormatInt(lr.revID, 10)
		rec = lr
	case row.Has("ar_rev_id"):
		ar := archivedRow{
			db:        db,
			namespace: int(r.num("ar_namespace")),
			title:     r.str("ar_title"),
			revID:     r.num("ar_rev_id"),
		}
		ar.entry = r.entry("ar_timestamp", "ar_user", "ar_user_text", "ar_comment", "ar_deleted")
		if kind == KindArchive {
			ar.id = ar.timestamp
			rec = &archiveEntry{archivedRow: ar}
		} else {
			ar.id = strconv.FormatInt(ar.revID, 10)
			rec = &archivedRevision{archivedRow: ar}
		}
	case row.Has("oi_archive_name"):
		oi := &oldImage{
			db:          db,
			name:        r.str("oi_name"),
			archiveName: r.str("oi_archive_name"),
			sha1:        r.str("oi_sha1"),
		}
		oi.entry = r.entry("oi_timestamp", "oi_user", "oi_user_text", "oi_description", "oi_deleted")
		oi.id = oi.archiveName
		rec = oi
	case row.Has("fa_id"):
		fa := &fileArchiveEntry{
			db:         db,
			faID:       r.num("fa_id"),
			name:       r.str("fa_name"),
			storageKey: r.str("fa_storage_key"),
		}
		fa.entry = r.entry("fa_timestamp", "fa_user", "fa_user_text", "fa_description", "fa_deleted")
		fa.id = strconv.FormatInt(fa.faID, 10)
		rec = fa
	case row.Has("log_id"):
		le := &logEntry{
			db:        db,
			logID:     r.num("log_id"),
			logType:   r.str("log_type"),
			action:    r.str("log_action"),
			namespace: int(r.num("log_namespace")),
			title:     r.str("log_title"),
		}
		le.entry = r.entry("log_timestamp", "log_user", "log_user_text", "log_comment", "log_deleted")
		le.id = strconv.FormatInt(le.logID, 10)
		rec = le
	default:
		return nil, NewIntegrityError(fmt.Sprintf("%s row matches no known record shape", kind), nil)
	}

	if r.err != nil {
		return nil, NewIntegrityError(fmt.Sprintf("malformed %s row", kind), r.err)
	}
	if rec.Kind() != kind {
		return nil, NewIntegrityError(fmt.Sprintf("%s query returned a %s row", kind, rec.Kind()), nil)
	}
	return rec, nil
}

// rowReader reads typed columns and keeps the first conversion error.
type rowReader struct {
	row queryir.Row
	err error
}

func (r *rowReader) num(col string) int64 {
	n, err := r.row.Int64(col)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n
}

func (r *rowReader) str(col string) string {
	s, err := r.row.String(col)
	if err != nil && r.err == nil {
		r.err = err
	}
	return s
}

func (r *rowReader) entry(ts, user, userText, comment, deleted string) entry {
	bits := visibility.Bits(r.num(deleted))
	if !bits.Valid() && r.err == nil {
		r.err = fmt.Errorf("column %q holds unknown bits %s", deleted, bits)
	}
	return entry{
		timestamp: r.str(ts),
		userID:    r.num(user),
		userText:  r.str(userText),
		comment:   r.str(comment),
		bits:      bits,
	}
}
