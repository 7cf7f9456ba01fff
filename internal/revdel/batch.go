package revdel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/visibility"
)

// Migration phases, in execution order.
const (
	PhaseStage   = "stage"
	PhaseDelete  = "delete"
	PhaseCleanup = "cleanup"
)

// ErrBatchDrained is returned by Execute on a batch that already ran.
var ErrBatchDrained = errors.New("batch already drained")

// errPhaseAborted marks ops skipped because an earlier phase failed.
var errPhaseAborted = errors.New("aborted after an earlier phase failed")

// Change is one persisted bit change.
type Change struct {
	ID  string
	Old visibility.Bits
	New visibility.Bits

	// Files lists public paths whose served bytes the change affects.
	Files []string
}

// fileVersion identifies the bytes of one old file version.
type fileVersion struct {
	id          string
	name        string
	archiveName string
	sha1        string
}

type cleanupOp struct {
	op          filestore.PurgeOp
	sha1        string
	archiveName string
}

// Batch is the per-run context handed to every record's SetBits. It carries
// the actor and subject, collects the file operations planned by file
// records, and remembers which changes persisted. It is drained exactly once.
type Batch struct {
	Actor   visibility.Actor
	Subject Subject

	stage   []filestore.StageOp
	deletes []filestore.DeleteOp
	cleanup []cleanupOp
	changes []Change
	drained bool
}

// NewBatch creates an empty batch.
func NewBatch(actor visibility.Actor, subject Subject) *Batch {
	return &Batch{Actor: actor, Subject: subject}
}

// StageOps returns the planned stage ops.
func (b *Batch) StageOps() []filestore.StageOp { return append([]filestore.StageOp(nil), b.stage...) }

// DeleteOps returns the planned delete ops.
func (b *Batch) DeleteOps() []filestore.DeleteOp {
	return append([]filestore.DeleteOp(nil), b.deletes...)
}

// CleanupOps returns the planned cleanup ops.
func (b *Batch) CleanupOps() []filestore.PurgeOp {
	return lo.Map(b.cleanup, func(c cleanupOp, _ int) filestore.PurgeOp { return c.op })
}

// Changes returns the persisted changes in persistence order.
func (b *Batch) Changes() []Change { return append([]Change(nil), b.changes...) }

// HasFileOps reports whether any file op is pending.
func (b *Batch) HasFileOps() bool {
	return len(b.stage)+len(b.deletes)+len(b.cleanup) > 0
}

func (b *Batch) recordChange(c Change) {
	b.changes = append(b.changes, c)
}

// planFile enqueues the file ops for a version whose bits moved from old to
// new:
//
//	hidden -> hidden:   nothing
//	hidden -> visible:  stage (deleted -> public), then cleanup (deleted)
//	visible -> hidden:  delete (public -> deleted)
func (b *Batch) planFile(v fileVersion, old, new visibility.Bits) {
	wasHidden := old.Has(visibility.Content)
	isHidden := new.Has(visibility.Content)
	key := filestore.DeletedKey(v.sha1, v.name)
	public := filestore.ArchivePath(v.name, v.archiveName)

	switch {
	case wasHidden && !isHidden:
		b.stage = append(b.stage, filestore.StageOp{Src: key, Dst: public, OverwriteSame: true, Tag: v.id})
		b.cleanup = append(b.cleanup, cleanupOp{
			op:          filestore.PurgeOp{Key: key, Tag: v.id},
			sha1:        v.sha1,
			archiveName: v.archiveName,
		})
	case !wasHidden && isHidden:
		b.deletes = append(b.deletes, filestore.DeleteOp{Src: public, Dst: key, Tag: v.id})
	}
}

// MigrationResult is the outcome of the three file phases.
type MigrationResult struct {
	Stage   *filestore.Status
	Delete  *filestore.Status
	Cleanup *filestore.Status

	// Aborted lists phases skipped because an earlier phase failed.
	Aborted []string

	// Retained lists deleted-zone keys kept by cleanup because another row
	// still references them.
	Retained []string

	// failed maps a logical id to the error that affected it.
	failed map[string]*Error
}

// OK reports whether every phase ran and every op succeeded.
func (m *MigrationResult) OK() bool {
	return m == nil || (len(m.Aborted) == 0 && len(m.failed) == 0)
}

// Err returns every phase failure as one error, or nil.
func (m *MigrationResult) Err() error {
	if m == nil {
		return nil
	}
	var merr *multierror.Error
	for _, st := range []*filestore.Status{m.Stage, m.Delete, m.Cleanup} {
		if err := st.Err(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	for _, phase := range m.Aborted {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", phase, errPhaseAborted))
	}
	return merr.ErrorOrNil()
}

// FailedIDs returns, per logical id, the storage error that affected it.
func (m *MigrationResult) FailedIDs() map[string]*Error {
	if m == nil {
		return nil
	}
	return m.failed
}

func (m *MigrationResult) markFailed(phase string, st *filestore.Status) {
	for _, f := range st.Failures {
		if _, seen := m.failed[f.Tag]; !seen {
			m.failed[f.Tag] = NewStorageMigrationError(f.Tag, phase, f)
		}
	}
}

func (m *MigrationResult) markAborted(phase string, tags []string) {
	m.Aborted = append(m.Aborted, phase)
	for _, tag := range tags {
		if _, seen := m.failed[tag]; !seen {
			m.failed[tag] = NewStorageMigrationError(tag, phase, errPhaseAborted)
		}
	}
}

// Execute runs the planned file ops in three phases:
//
//  1. stage every restore; any failure aborts delete and cleanup, so the
//     only surviving copy is never removed after a failed restore.
//  2. delete every hide; any failure aborts cleanup, so the deleted zone is
//     never emptied while its bytes may be the only copy.
//  3. cleanup, skipping keys still referenced by another row.
//
// Phase failures never undo committed row changes; they are reported in the
// result and against the ids the failed or skipped ops served.
func (b *Batch) Execute(ctx context.Context, repo FileRepo, db DB) (*MigrationResult, error) {
	if b.drained {
		return nil, ErrBatchDrained
	}
	b.drained = true

	res := &MigrationResult{failed: map[string]*Error{}}
	if !b.HasFileOps() {
		return res, nil
	}

	deleteTags := lo.Map(b.deletes, func(op filestore.DeleteOp, _ int) string { return op.Tag })
	cleanupTags := lo.Map(b.cleanup, func(op cleanupOp, _ int) string { return op.op.Tag })

	res.Stage = repo.Stage(ctx, b.stage)
	log.Debug(ctx, "stage phase done", log.Int("ops", len(b.stage)), log.Int("failed", len(res.Stage.Failures)))
	if !res.Stage.OK() {
		res.markFailed(PhaseStage, res.Stage)
		res.markAborted(PhaseDelete, deleteTags)
		res.markAborted(PhaseCleanup, cleanupTags)
		log.Warn(ctx, "stage phase failed, delete and cleanup aborted", log.Cause(res.Stage.Err()))
		return res, nil
	}

	res.Delete = repo.Remove(ctx, b.deletes)
	log.Debug(ctx, "delete phase done", log.Int("ops", len(b.deletes)), log.Int("failed", len(res.Delete.Failures)))
	if !res.Delete.OK() {
		res.markFailed(PhaseDelete, res.Delete)
		res.markAborted(PhaseCleanup, cleanupTags)
		log.Warn(ctx, "delete phase failed, cleanup aborted", log.Cause(res.Delete.Err()))
		return res, nil
	}

	purge, refErrs := b.unreferencedCleanup(ctx, db, res)
	res.Cleanup = repo.Purge(ctx, purge)
	for _, f := range refErrs {
		res.Cleanup.Attempted++
		res.Cleanup.Failures = append(res.Cleanup.Failures, f)
	}
	log.Debug(ctx, "cleanup phase done",
		log.Int("ops", len(b.cleanup)),
		log.Int("retained", len(res.Retained)),
		log.Int("failed", len(res.Cleanup.Failures)))
	if !res.Cleanup.OK() {
		res.markFailed(PhaseCleanup, res.Cleanup)
	}
	return res, nil
}

// unreferencedCleanup drops cleanup ops whose key is still needed: by a
// filearchive row, or by another hidden oldimage version with the same
// content hash. A failed reference lookup keeps the key and fails the op.
func (b *Batch) unreferencedCleanup(ctx context.Context, db DB, res *MigrationResult) ([]filestore.PurgeOp, []filestore.Failure) {
	var (
		purge  []filestore.PurgeOp
		failed []filestore.Failure
	)
	for _, c := range b.cleanup {
		referenced, err := keyReferenced(ctx, db, c)
		if err != nil {
			failed = append(failed, filestore.Failure{
				Op: filestore.OpPurge, Tag: c.op.Tag, Path: c.op.Key,
				Err: fmt.Errorf("reference check: %w", err),
			})
			continue
		}
		if referenced {
			res.Retained = append(res.Retained, c.op.Key)
			continue
		}
		purge = append(purge, c.op)
	}
	return purge, failed
}

func keyReferenced(ctx context.Context, db DB, c cleanupOp) (bool, error) {
	rows, err := db.Select(ctx, queryir.Select{
		From:    "filearchive",
		Columns: []string{"fa_id"},
		Filter:  queryir.Eq("fa_storage_key", c.op.Key),
		Limit:   1,
	})
	if err != nil {
		return false, err
	}
	if len(rows) > 0 {
		return true, nil
	}

	if c.sha1 == "" {
		return false, nil
	}
	rows, err = db.Select(ctx, queryir.Select{
		From:    "oldimage",
		Columns: []string{"oi_archive_name", "oi_deleted"},
		Filter:  queryir.Eq("oi_sha1", c.sha1),
	})
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		name, err := row.String("oi_archive_name")
		if err != nil {
			return false, err
		}
		bits, err := row.Int64("oi_deleted")
		if err != nil {
			return false, err
		}
		if name != c.archiveName && visibility.Bits(bits).Has(visibility.Content) {
			return true, nil
		}
	}
	return false, nil
}
