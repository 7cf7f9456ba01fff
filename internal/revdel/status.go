package revdel

import (
	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/visibility"
)

// State is a coordinator run's position in its lifecycle.
type State string

const (
	StateBuilt         State = "built"
	StateQueried       State = "queried"
	StateBitsApplied   State = "bits-applied"
	StatePreCommitted  State = "pre-committed"
	StatePersisted     State = "persisted"
	StatePostCommitted State = "post-committed"
	StateFailed        State = "failed"
)

// OutcomeKind classifies what happened to one requested id.
type OutcomeKind string

const (
	OutcomeOK                     OutcomeKind = "ok"
	OutcomeUnchanged              OutcomeKind = "unchanged"
	OutcomeNotFound               OutcomeKind = "not-found"
	OutcomeConcurrentModification OutcomeKind = "concurrent-modification"
	OutcomeStorageMigration       OutcomeKind = "storage-migration"
	OutcomeStoreError             OutcomeKind = "store-error"
)

// Outcome is the result for one logical id.
type Outcome struct {
	Kind OutcomeKind     `json:"outcome" yaml:"outcome"`
	Old  visibility.Bits `json:"old" yaml:"old"`
	New  visibility.Bits `json:"new" yaml:"new"`
	Err  error           `json:"-" yaml:"-"`
}

// Succeeded reports whether the id ended up with its requested bits.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeOK || o.Kind == OutcomeUnchanged
}

// Result summarises a run.
type Result string

const (
	ResultNone    Result = "none"
	ResultPartial Result = "partial"
	ResultAll     Result = "all"
)

// Status is the report of one coordinator run. A run always produces one,
// including runs that failed before touching a row.
type Status struct {
	OperationID string
	Kind        Kind
	Subject     Subject
	State       State

	// Outcomes maps each requested id to its outcome. Order lists the ids as
	// requested, de-duplicated. A failed run keeps only the outcomes it
	// established before failing (ids found missing, records that would not
	// change); ids it never got to have no entry in either.
	Outcomes map[string]Outcome
	Order    []string

	// Storage is the file migration result; nil when no file op ran.
	Storage *MigrationResult

	// HookErrors holds advisory post-commit failures.
	HookErrors []error

	// Err is the structural error that failed the run, if any.
	Err error
}

func newStatus(opID string, kind Kind, subject Subject) *Status {
	return &Status{
		OperationID: opID,
		Kind:        kind,
		Subject:     subject,
		State:       StateBuilt,
		Outcomes:    map[string]Outcome{},
	}
}

func (s *Status) set(id string, o Outcome) {
	if !lo.Contains(s.Order, id) {
		s.Order = append(s.Order, id)
	}
	s.Outcomes[id] = o
}

func (s *Status) fail(err error) {
	s.State = StateFailed
	s.Err = err
	s.Order = lo.Filter(s.Order, func(id string, _ int) bool {
		_, ok := s.Outcomes[id]
		return ok
	})
}

// OK reports whether the run completed and every id is ok or unchanged with
// no storage failure.
func (s *Status) OK() bool {
	if s.Err != nil || s.State == StateFailed {
		return false
	}
	if !s.Storage.OK() {
		return false
	}
	for _, o := range s.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

// Result reports whether none, some or all requested ids succeeded.
func (s *Status) Result() Result {
	if s.Err != nil || len(s.Outcomes) == 0 {
		return ResultNone
	}
	n := lo.CountBy(lo.Values(s.Outcomes), Outcome.Succeeded)
	switch n {
	case 0:
		return ResultNone
	case len(s.Outcomes):
		return ResultAll
	}
	return ResultPartial
}

// Changed lists the ids whose bits were persisted, in request order.
func (s *Status) Changed() []string {
	return s.idsWhere(func(o Outcome) bool { return o.Kind == OutcomeOK && o.Old != o.New })
}

// Failed lists the ids that did not succeed, in request order.
func (s *Status) Failed() []string {
	return s.idsWhere(func(o Outcome) bool { return !o.Succeeded() })
}

// Errors returns the per-id errors keyed by id.
func (s *Status) Errors() map[string]error {
	return lo.MapEntries(
		lo.PickBy(s.Outcomes, func(_ string, o Outcome) bool { return o.Err != nil }),
		func(id string, o Outcome) (string, error) { return id, o.Err },
	)
}

func (s *Status) idsWhere(pred func(Outcome) bool) []string {
	return lo.Filter(s.Order, func(id string, _ int) bool { return pred(s.Outcomes[id]) })
}
