package revdel

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/pagecache"
	"github.com/roach88/revdel/internal/visibility"
)

// VisibilityChanged is published once per persisted bit change.
type VisibilityChanged struct {
	OperationID string          `json:"operation_id"`
	Kind        Kind            `json:"kind"`
	Namespace   int             `json:"namespace"`
	Title       string          `json:"title"`
	ID          string          `json:"id"`
	Old         visibility.Bits `json:"old"`
	New         visibility.Bits `json:"new"`
	Actor       string          `json:"actor"`
	Reason      string          `json:"reason,omitempty"`
}

// preCommit runs before any row is written. Kinds whose rendered output is
// cached per subject drop that entry first, so no reader is served the old
// output once the first row flips. An error aborts the run.
func (c *Coordinator) preCommit(ctx context.Context, kind Kind, subject Subject) error {
	if c.cache == nil {
		return nil
	}
	switch kind {
	case KindRevision, KindOldImage:
		key := pagecache.PageKey(subject.Namespace, subject.Title)
		if err := c.cache.Invalidate(ctx, key); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
		log.Debug(ctx, "page cache invalidated", log.String("key", key))
	}
	return nil
}

// postCommit purges the subject and every affected file from the cache and
// announces each change. Failures are returned for the status and never
// undo anything.
func (c *Coordinator) postCommit(ctx context.Context, opID string, req Request, changes []Change) []error {
	if len(changes) == 0 {
		return nil
	}
	var errs []error

	if c.cache != nil {
		keys := []string{pagecache.PageKey(req.Subject.Namespace, req.Subject.Title)}
		for _, ch := range changes {
			keys = append(keys, lo.Map(ch.Files, func(p string, _ int) string { return pagecache.FileKey(p) })...)
		}
		keys = lo.Uniq(keys)
		if err := c.cache.Purge(ctx, keys...); err != nil {
			log.Warn(ctx, "page cache purge failed", log.Strings("keys", keys), log.Cause(err))
			errs = append(errs, fmt.Errorf("purge cache: %w", err))
		}
	}

	if c.notifier != nil {
		for _, ch := range changes {
			ev := VisibilityChanged{
				OperationID: opID,
				Kind:        req.Kind,
				Namespace:   req.Subject.Namespace,
				Title:       req.Subject.Title,
				ID:          ch.ID,
				Old:         ch.Old,
				New:         ch.New,
				Actor:       req.Actor.Name,
				Reason:      req.Reason,
			}
			if err := c.notifier.Notify(ctx, ev); err != nil {
				log.Warn(ctx, "visibility change notification failed", log.String("id", ch.ID), log.Cause(err))
				errs = append(errs, fmt.Errorf("notify %s: %w", ch.ID, err))
			}
		}
	}
	return errs
}

// changedFiles lists the public paths whose served bytes rec's change
// affects.
func changedFiles(rec Record) []string {
	if oi, ok := rec.(*oldImage); ok {
		return []string{filestore.ArchivePath(oi.name, oi.archiveName)}
	}
	return nil
}
