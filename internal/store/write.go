package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/querysql"
)

// Update runs u and returns the number of rows it changed.
//
// The count is the caller's compare-and-swap result: the engine's filters
// always include the bitmask last read, so 0 means the row moved on or
// vanished.
func (s *Store) Update(ctx context.Context, u queryir.Update) (int64, error) {
	query, args, err := s.compiler.CompileUpdate(u)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", u.Table, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", u.Table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", u.Table, err)
	}
	return n, nil
}

// InsertPage writes a page row.
func (s *Store) InsertPage(ctx context.Context, p Page) error {
	return s.insert(ctx, "page", `
		INSERT INTO page (page_id, page_namespace, page_title, page_latest)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Namespace, p.Title, p.Latest)
}

// SetPageLatest points page_latest at revID.
func (s *Store) SetPageLatest(ctx context.Context, pageID, revID int64) error {
	_, err := s.Update(ctx, queryir.Update{
		Table:  "page",
		Set:    []queryir.Assignment{{Column: "page_latest", Value: revID}},
		Filter: queryir.Eq("page_id", pageID),
	})
	return err
}

// InsertRevision writes a live revision row.
func (s *Store) InsertRevision(ctx context.Context, r Revision) error {
	return s.insert(ctx, "revision", `
		INSERT INTO revision
		(rev_id, rev_page, rev_timestamp, rev_user, rev_user_text, rev_comment, rev_len, rev_sha1, rev_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.PageID, r.Timestamp, r.UserID, r.UserText, r.Comment, r.Len, r.SHA1, r.Deleted)
}

// InsertArchive writes an archived revision row.
func (s *Store) InsertArchive(ctx context.Context, a ArchivedRevision) error {
	return s.insert(ctx, "archive", `
		INSERT INTO archive
		(ar_namespace, ar_title, ar_rev_id, ar_timestamp, ar_user, ar_user_text, ar_comment, ar_len, ar_sha1, ar_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Namespace, a.Title, a.RevID, a.Timestamp, a.UserID, a.UserText, a.Comment, a.Len, a.SHA1, a.Deleted)
}

// InsertOldImage writes an old file version row.
func (s *Store) InsertOldImage(ctx context.Context, o OldImage) error {
	return s.insert(ctx, "oldimage", `
		INSERT INTO oldimage
		(oi_name, oi_archive_name, oi_timestamp, oi_user, oi_user_text, oi_description, oi_size, oi_sha1, oi_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.Name, o.ArchiveName, o.Timestamp, o.UserID, o.UserText, o.Description, o.Size, o.SHA1, o.Deleted)
}

// InsertFileArchive writes a deleted file row.
func (s *Store) InsertFileArchive(ctx context.Context, f FileArchive) error {
	return s.insert(ctx, "filearchive", `
		INSERT INTO filearchive
		(fa_id, fa_name, fa_archive_name, fa_storage_key, fa_timestamp, fa_user, fa_user_text, fa_description, fa_size, fa_sha1, fa_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.ArchiveName, f.StorageKey, f.Timestamp, f.UserID, f.UserText, f.Description, f.Size, f.SHA1, f.Deleted)
}

// InsertLog writes a log entry row.
func (s *Store) InsertLog(ctx context.Context, l LogEntry) error {
	return s.insert(ctx, "logging", `
		INSERT INTO logging
		(log_id, log_type, log_action, log_timestamp, log_user, log_user_text, log_namespace, log_title, log_comment, log_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Type, l.Action, l.Timestamp, l.UserID, l.UserText, l.Namespace, l.Title, l.Comment, l.Deleted)
}

// InsertRecentChange writes a recent-activity index row.
func (s *Store) InsertRecentChange(ctx context.Context, rc RecentChange) error {
	return s.insert(ctx, "recentchanges", `
		INSERT INTO recentchanges
		(rc_timestamp, rc_namespace, rc_title, rc_cur_id, rc_this_oldid, rc_logid, rc_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rc.Timestamp, rc.Namespace, rc.Title, rc.CurID, rc.ThisOldID, rc.LogID, rc.Deleted)
}

func (s *Store) insert(ctx context.Context, table, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if s.compiler.Dialect != querysql.DialectDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
