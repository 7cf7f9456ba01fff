package harness

import (
	"sort"

	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/revdel"
)

// TraceEvent is the snapshot of one flow step's run.
type TraceEvent struct {
	Step        int            `json:"step"`
	OperationID string         `json:"operation_id"`
	Actor       string         `json:"actor"`
	Kind        string         `json:"kind"`
	Subject     string         `json:"subject"`
	State       string         `json:"state"`
	Result      string         `json:"result"`
	Error       string         `json:"error,omitempty"`
	Outcomes    []OutcomeEvent `json:"outcomes,omitempty"`
	Storage     *StorageEvent  `json:"storage,omitempty"`
}

// OutcomeEvent is one id's outcome. Bits are rendered by name.
type OutcomeEvent struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Error   string `json:"error,omitempty"`
}

// StorageEvent counts the ops each migration phase attempted.
type StorageEvent struct {
	Stage    int      `json:"stage"`
	Delete   int      `json:"delete"`
	Cleanup  int      `json:"cleanup"`
	Failed   []string `json:"failed,omitempty"`
	Retained []string `json:"retained,omitempty"`
	Aborted  []string `json:"aborted,omitempty"`
}

// newTraceEvent snapshots st. Outcomes of a failed run are left out: no row
// was touched, and the error code says why.
func newTraceEvent(step int, actor string, st *revdel.Status) TraceEvent {
	ev := TraceEvent{
		Step:        step,
		OperationID: st.OperationID,
		Actor:       actor,
		Kind:        string(st.Kind),
		Subject:     st.Subject.String(),
		State:       string(st.State),
		Result:      string(st.Result()),
		Error:       string(revdel.CodeOf(st.Err)),
	}
	if st.State == revdel.StateFailed {
		return ev
	}

	for _, id := range st.Order {
		o := st.Outcomes[id]
		ev.Outcomes = append(ev.Outcomes, OutcomeEvent{
			ID:      id,
			Outcome: string(o.Kind),
			Old:     o.Old.String(),
			New:     o.New.String(),
			Error:   string(revdel.CodeOf(o.Err)),
		})
	}

	if m := st.Storage; m != nil {
		failed := lo.Keys(m.FailedIDs())
		sort.Strings(failed)
		ev.Storage = &StorageEvent{
			Stage:    attempted(m.Stage),
			Delete:   attempted(m.Delete),
			Cleanup:  attempted(m.Cleanup),
			Failed:   failed,
			Retained: m.Retained,
			Aborted:  m.Aborted,
		}
	}
	return ev
}

func attempted(st *filestore.Status) int {
	if st == nil {
		return 0
	}
	return st.Attempted
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	// Used for golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Statuses are the raw run statuses, indexed like Trace.
	Statuses []*revdel.Status `json:"-"`

	// Events are the visibility changes announced during the flow.
	Events []revdel.VisibilityChanged `json:"events,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records one step's status.
func (r *Result) AddStep(ev TraceEvent, st *revdel.Status) {
	r.Trace = append(r.Trace, ev)
	r.Statuses = append(r.Statuses, st)
}
