package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/roach88/revdel/internal/events"
	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/pagecache"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/revdel"
	"github.com/roach88/revdel/internal/store"
	"github.com/roach88/revdel/internal/testutil"
	"github.com/roach88/revdel/internal/visibility"
)

// eventBuffer bounds the visibility changes one scenario may announce
// without dropping any.
const eventBuffer = 1024

// Harness runs scenario steps against one store, file repo and cache.
type Harness struct {
	store    *store.Store
	repo     *filestore.Repo
	cache    *pagecache.Memory
	notifier *events.Memory[revdel.VisibilityChanged]
	opIDs    revdel.OperationIDGenerator
	actors   map[string]visibility.Actor
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database and file repo for
// isolation, with a fixed operation id for reproducible snapshots.
//
// Execution flow:
// 1. Create fresh in-memory database and file repo
// 2. Load the fixture
// 3. Run each flow step through a revdel.Coordinator, checking its expect clause
// 4. Evaluate assertions
// 5. Return result with pass/fail, trace, and errors
//
// An error is returned only when the scenario cannot be run at all; failed
// expectations and assertions are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	fixture, err := scenario.fixture()
	if err != nil {
		return nil, err
	}
	repo := testutil.NewRepo()
	if err := fixture.Load(ctx, st, repo); err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}

	h := &Harness{
		store:    st,
		repo:     repo,
		cache:    pagecache.NewMemory(time.Minute, time.Minute),
		notifier: events.NewMemory[revdel.VisibilityChanged](events.MemoryOptions{Buffer: eventBuffer}),
		opIDs:    testutil.NewStaticOperationID(scenario.OperationID),
		actors:   make(map[string]visibility.Actor, len(scenario.Actors)),
	}
	for name, spec := range scenario.Actors {
		h.actors[name] = visibility.Actor{
			ID:             spec.ID,
			Name:           name,
			CanViewDeleted: spec.CanViewDeleted,
			CanSuppress:    spec.CanSuppress,
		}
	}

	ch, unsubscribe := h.notifier.Subscribe()
	defer unsubscribe()

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute flow: %w", err)
		}
		result.Events = append(result.Events, drain(ch)...)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Repo:    repo,
		Fixture: fixture,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeStep runs one redaction and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	req, err := h.request(step)
	if err != nil {
		return fmt.Errorf("flow step %d: %w", i, err)
	}

	var db revdel.DB = h.store
	var race *raceDB
	if step.Race != nil {
		bits, _ := visibility.Parse(step.Race.Bits)
		race = &raceDB{DB: h.store, store: h.store, race: *step.Race, bits: bits}
		db = race
	}

	c := revdel.NewCoordinator(db,
		revdel.WithFileRepo(h.repo),
		revdel.WithPageCache(h.cache),
		revdel.WithNotifier(h.notifier),
		revdel.WithOperationIDs(h.opIDs))

	st, _ := c.Run(ctx, req)
	ev := newTraceEvent(i, step.Actor, st)
	result.AddStep(ev, st)

	if race != nil {
		if err := race.result(); err != nil {
			result.AddError(fmt.Sprintf("flow[%d]: %v", i, err))
		}
	}
	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, ev) {
			result.AddError(msg)
		}
	}
	return nil
}

// request builds the coordinator request for step.
func (h *Harness) request(step FlowStep) (revdel.Request, error) {
	kind, err := revdel.ParseKind(step.Kind)
	if err != nil {
		return revdel.Request{}, err
	}
	subject, err := revdel.ParseSubject(step.Subject)
	if err != nil {
		return revdel.Request{}, err
	}
	set, err := visibility.Parse(step.Set)
	if err != nil {
		return revdel.Request{}, err
	}
	clear, err := visibility.Parse(step.Clear)
	if err != nil {
		return revdel.Request{}, err
	}
	actor, ok := h.actors[step.Actor]
	if !ok {
		return revdel.Request{}, fmt.Errorf("unknown actor %q", step.Actor)
	}
	return revdel.Request{
		Kind:       kind,
		Subject:    subject,
		IDs:        step.IDs,
		Set:        set,
		Clear:      clear,
		Suppress:   step.Suppress,
		AckCurrent: step.AckCurrent,
		Actor:      actor,
		Reason:     step.Reason,
	}, nil
}

// checkExpect compares a step's snapshot against its expect clause.
func checkExpect(i int, exp *ExpectClause, ev TraceEvent) []string {
	var errs []string
	if exp.Error != ev.Error {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected error %q, got %q", i, exp.Error, ev.Error))
	}
	if exp.Result != "" && exp.Result != ev.Result {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected result %q, got %q", i, exp.Result, ev.Result))
	}
	outcomes := make(map[string]string, len(ev.Outcomes))
	for _, o := range ev.Outcomes {
		outcomes[o.ID] = o.Outcome
	}
	for _, id := range sortedKeys(exp.Outcomes) {
		if got := outcomes[id]; got != exp.Outcomes[id] {
			errs = append(errs, fmt.Sprintf("flow[%d]: id %s: expected outcome %q, got %q", i, id, exp.Outcomes[id], got))
		}
	}
	return errs
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

// raceDB makes a competing write right before the first matching update.
type raceDB struct {
	revdel.DB
	store *store.Store
	race  Race
	bits  visibility.Bits

	once  sync.Once
	fired bool
	err   error
}

func (d *raceDB) Update(ctx context.Context, u queryir.Update) (int64, error) {
	if u.Table == d.race.Table && filterMatches(u.Filter, d.race.Where) {
		d.once.Do(func() {
			d.fired = true
			_, d.err = d.store.Update(ctx, queryir.Update{
				Table:  d.race.Table,
				Set:    []queryir.Assignment{{Column: d.race.Column, Value: int(d.bits)}},
				Filter: whereFilter(d.race.Where),
			})
		})
	}
	return d.DB.Update(ctx, u)
}

func (d *raceDB) result() error {
	switch {
	case d.err != nil:
		return fmt.Errorf("race write on %s failed: %w", d.race.Table, d.err)
	case !d.fired:
		return fmt.Errorf("race on %s where %s never fired", d.race.Table, formatWhereClause(d.race.Where))
	}
	return nil
}

// filterMatches reports whether p requires every where pair, comparing
// values by their string form.
func filterMatches(p queryir.Predicate, where map[string]any) bool {
	eq := map[string]string{}
	var collect func(queryir.Predicate)
	collect = func(p queryir.Predicate) {
		switch p := p.(type) {
		case queryir.Equals:
			eq[p.Field] = cast.ToString(p.Value)
		case queryir.And:
			for _, sub := range p.Predicates {
				collect(sub)
			}
		}
	}
	collect(p)

	for k, v := range where {
		if got, ok := eq[k]; !ok || got != cast.ToString(v) {
			return false
		}
	}
	return true
}

// whereFilter turns where pairs into an equality filter, in key order.
func whereFilter(where map[string]any) queryir.Predicate {
	keys := sortedKeys(where)
	preds := make([]queryir.Predicate, 0, len(keys))
	for _, k := range keys {
		preds = append(preds, queryir.Eq(k, toSQLValue(where[k])))
	}
	return queryir.AllOf(preds...)
}
