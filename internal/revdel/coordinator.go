package revdel

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/revdel/internal/events"
	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/visibility"
)

// DefaultMaxIDs caps the ids one request may name.
const DefaultMaxIDs = 500

// Request is one redaction: change the bits of ids under subject.
type Request struct {
	Kind    Kind
	Subject Subject
	IDs     []string

	// Set and Clear are applied as (old &^ Clear) | Set.
	Set   visibility.Bits
	Clear visibility.Bits

	// Suppress adds Restricted to Set. Lifting Restricted needs it in Clear.
	Suppress bool

	// AckCurrent allows hiding the content of the subject's current revision.
	AckCurrent bool

	Actor  visibility.Actor
	Reason string
}

// masks returns the effective set and clear masks.
func (r Request) masks() (visibility.Bits, visibility.Bits, error) {
	set, clear := r.Set, r.Clear
	if r.Suppress {
		set |= visibility.Restricted
	}
	switch {
	case !set.Valid() || !clear.Valid():
		return 0, 0, NewInvalidRequestError("unknown bits in set=%d clear=%d", int(set), int(clear))
	case set&clear != 0:
		return 0, 0, NewInvalidRequestError("bits %s are both set and cleared", set&clear)
	case set == 0 && clear == 0:
		return 0, 0, NewInvalidRequestError("nothing to set or clear")
	}
	return set, clear, nil
}

// Coordinator runs redactions against one store.
//
// A run is synchronous and touches rows one at a time. Concurrent runs, in
// this process or another, are kept apart by the compare-and-swap on every
// row and by the ordering of file migration phases, not by locks.
type Coordinator struct {
	db       DB
	files    FileRepo
	cache    PageCache
	notifier events.Notifier[VisibilityChanged]
	metrics  *Metrics
	opIDs    OperationIDGenerator
	maxIDs   int
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithFileRepo sets the file repository. Required for the oldimage kind.
func WithFileRepo(r FileRepo) CoordinatorOption {
	return func(c *Coordinator) {
		c.files = r
	}
}

// WithPageCache sets the cache invalidated around each run.
func WithPageCache(pc PageCache) CoordinatorOption {
	return func(c *Coordinator) {
		c.cache = pc
	}
}

// WithNotifier sets where VisibilityChanged events are published.
func WithNotifier(n events.Notifier[VisibilityChanged]) CoordinatorOption {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithMetrics sets the run metrics.
func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithOperationIDs sets the operation id generator.
//
// Default: UUIDv7Generator.
// Use NewFixedGenerator in tests that snapshot statuses.
func WithOperationIDs(g OperationIDGenerator) CoordinatorOption {
	return func(c *Coordinator) {
		c.opIDs = g
	}
}

// WithMaxIDs caps the ids per request.
//
// Default: 500 (DefaultMaxIDs).
func WithMaxIDs(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.maxIDs = n
	}
}

// NewCoordinator creates a coordinator over db.
func NewCoordinator(db DB, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		db:     db,
		opIDs:  UUIDv7Generator{},
		maxIDs: DefaultMaxIDs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// plannedChange is one record whose bits will be written.
type plannedChange struct {
	rec Record
	old visibility.Bits
	new visibility.Bits
}

// Run performs req and reports what happened to every requested id.
//
// The returned Status is never nil. A non-nil error means the run failed
// before any row was written (invalid request, nothing found, lockout,
// unacknowledged current-version hide, pre-commit failure, or a store
// error while reading); Status.State is then StateFailed. Per-id failures
// during persistence do not stop the run and are reported only in Status.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Status, error) {
	start := time.Now()
	opID := c.opIDs.Generate()
	ctx = log.WithOperation(ctx, opID)
	ctx = log.WithActor(ctx, req.Actor.Name)

	st := newStatus(opID, req.Kind, req.Subject)
	defer func() {
		c.metrics.observe(st, time.Since(start))
	}()

	log.Info(ctx, "redaction started",
		log.String("kind", string(req.Kind)),
		log.String("subject", req.Subject.String()),
		log.Strings("ids", req.IDs))

	err := c.run(ctx, opID, req, st)
	if err != nil {
		st.fail(err)
		log.Warn(ctx, "redaction failed", log.String("code", string(CodeOf(err))), log.Cause(err))
		return st, err
	}

	log.Info(ctx, "redaction finished",
		log.String("state", string(st.State)),
		log.String("result", string(st.Result())),
		log.Int("changed", len(st.Changed())),
		log.Int("failed", len(st.Failed())))
	return st, nil
}

func (c *Coordinator) run(ctx context.Context, opID string, req Request, st *Status) error {
	set, clear, err := req.masks()
	if err != nil {
		return err
	}
	if c.maxIDs > 0 && len(req.IDs) > c.maxIDs {
		return NewInvalidRequestError("%d ids exceed the limit of %d", len(req.IDs), c.maxIDs)
	}
	if req.Kind.HasFiles() && c.files == nil {
		return NewInvalidRequestError("%s redaction needs a file repository", req.Kind)
	}

	rs, err := NewRecordSet(c.db, req.Kind, req.Subject, req.IDs)
	if err != nil {
		return err
	}
	if err := rs.Query(ctx); err != nil {
		return err
	}
	st.Order = rs.IDs()
	for _, id := range rs.Missing() {
		st.set(id, Outcome{Kind: OutcomeNotFound, Err: NewNotFoundError(req.Kind, req.Subject, []string{id})})
	}
	if len(rs.Records()) == 0 {
		return NewNotFoundError(req.Kind, req.Subject, rs.IDs())
	}
	c.transition(ctx, st, StateQueried)

	plan, err := c.plan(ctx, rs, set, clear, req, st)
	if err != nil {
		return err
	}
	c.transition(ctx, st, StateBitsApplied)

	if len(plan) > 0 {
		if err := c.preCommit(ctx, req.Kind, req.Subject); err != nil {
			return &Error{Code: ErrCodePreCommit, Message: "pre-commit hook failed", Err: err}
		}
	}
	c.transition(ctx, st, StatePreCommitted)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("redaction cancelled before persistence: %w", err)
	}

	batch := NewBatch(req.Actor, req.Subject)
	c.persist(ctx, batch, plan, st)

	if req.Kind.HasFiles() {
		res, err := batch.Execute(ctx, c.files, c.db)
		if err != nil {
			return fmt.Errorf("file migration: %w", err)
		}
		st.Storage = res
		for id, serr := range res.FailedIDs() {
			o := st.Outcomes[id]
			o.Kind = OutcomeStorageMigration
			o.Err = serr
			st.set(id, o)
		}
	}
	c.transition(ctx, st, StatePersisted)

	st.HookErrors = c.postCommit(ctx, opID, req, batch.Changes())
	c.transition(ctx, st, StatePostCommitted)
	return nil
}

// plan computes every record's new bits and applies the checks that reject
// the whole run. Records whose bits would not change are reported unchanged.
func (c *Coordinator) plan(ctx context.Context, rs *RecordSet, set, clear visibility.Bits, req Request, st *Status) ([]plannedChange, error) {
	current, err := rs.Current(ctx)
	if err != nil {
		return nil, err
	}

	var plan []plannedChange
	for _, rec := range rs.Records() {
		old := rec.Bits()
		next := old.Apply(set, clear)
		if next == old {
			st.set(rec.ID(), Outcome{Kind: OutcomeUnchanged, Old: old, New: next})
			continue
		}
		if err := visibility.CheckChange(old, next, req.Actor); err != nil {
			return nil, NewLockoutError(rec.ID(), err)
		}
		if _, live := rec.(*liveRevision); live && rec.ID() == current &&
			!old.Has(visibility.Content) && next.Has(visibility.Content) && !req.AckCurrent {
			return nil, NewCurrentVersionError(rec.ID())
		}
		plan = append(plan, plannedChange{rec: rec, old: old, new: next})
	}
	return plan, nil
}

// persist writes each planned change in order. A lost compare-and-swap or a
// write error fails that id only.
func (c *Coordinator) persist(ctx context.Context, batch *Batch, plan []plannedChange, st *Status) {
	for _, p := range plan {
		id := p.rec.ID()
		ok, err := p.rec.SetBits(ctx, batch, p.new)
		switch {
		case err != nil:
			log.Error(ctx, "bit update failed", log.String("id", id), log.Cause(err))
			st.set(id, Outcome{
				Kind: OutcomeStoreError,
				Old:  p.old,
				New:  p.new,
				Err:  &Error{Code: ErrCodeStore, Message: "bit update failed", ID: id, Err: err},
			})
		case !ok:
			log.Warn(ctx, "concurrent modification", log.String("id", id))
			st.set(id, Outcome{
				Kind: OutcomeConcurrentModification,
				Old:  p.old,
				New:  p.new,
				Err:  NewConcurrentModificationError(id),
			})
		default:
			log.Debug(ctx, "bits persisted",
				log.String("id", id),
				log.String("old", p.old.String()),
				log.String("new", p.new.String()))
			batch.recordChange(Change{ID: id, Old: p.old, New: p.new, Files: changedFiles(p.rec)})
			st.set(id, Outcome{Kind: OutcomeOK, Old: p.old, New: p.new})
		}
	}
}

func (c *Coordinator) transition(ctx context.Context, st *Status, to State) {
	log.Debug(ctx, "state transition", log.String("from", string(st.State)), log.String("to", string(to)))
	st.State = to
}
