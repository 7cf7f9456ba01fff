package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/revdel/internal/revdel"
)

// RedactResult is the printable report of one redaction run.
type RedactResult struct {
	OperationID string        `json:"operation_id"`
	Kind        string        `json:"kind"`
	Subject     string        `json:"subject"`
	State       string        `json:"state"`
	Result      string        `json:"result"`
	Outcomes    []OutcomeView `json:"outcomes"`
	Storage     *StorageView  `json:"storage,omitempty"`
	HookErrors  []string      `json:"hook_errors,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// OutcomeView is one id's outcome with bits rendered by name.
type OutcomeView struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Error   string `json:"error,omitempty"`
}

// StorageView summarises the file migration.
type StorageView struct {
	OK       bool              `json:"ok"`
	Aborted  []string          `json:"aborted,omitempty"`
	Retained []string          `json:"retained,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func newRedactResult(st *revdel.Status) *RedactResult {
	res := &RedactResult{
		OperationID: st.OperationID,
		Kind:        string(st.Kind),
		Subject:     st.Subject.String(),
		State:       string(st.State),
		Result:      string(st.Result()),
		Outcomes:    make([]OutcomeView, 0, len(st.Order)),
		HookErrors: lo.Map(st.HookErrors, func(err error, _ int) string {
			return err.Error()
		}),
	}
	if st.Err != nil {
		res.Error = st.Err.Error()
	}

	for _, id := range st.Order {
		o := st.Outcomes[id]
		ov := OutcomeView{ID: id, Outcome: string(o.Kind), Old: o.Old.String(), New: o.New.String()}
		if o.Err != nil {
			ov.Error = o.Err.Error()
		}
		res.Outcomes = append(res.Outcomes, ov)
	}

	if m := st.Storage; m != nil {
		res.Storage = &StorageView{
			OK:       m.OK(),
			Aborted:  m.Aborted,
			Retained: m.Retained,
			Failed: lo.MapValues(m.FailedIDs(), func(err *revdel.Error, _ string) string {
				return err.Error()
			}),
		}
	}
	return res
}

func (r *RedactResult) operation() string { return r.OperationID }

// String renders the report for text output.
func (r *RedactResult) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Operation %s: %s %s %s (%s)\n", r.OperationID, r.Kind, r.Subject, r.Result, r.State)
	for _, o := range r.Outcomes {
		fmt.Fprintf(&buf, "  %-20s %-24s %s -> %s", o.ID, o.Outcome, o.Old, o.New)
		if o.Error != "" {
			fmt.Fprintf(&buf, "  %s", o.Error)
		}
		buf.WriteByte('\n')
	}
	if s := r.Storage; s != nil && !s.OK {
		fmt.Fprintln(&buf, "  file migration incomplete:")
		for _, phase := range s.Aborted {
			fmt.Fprintf(&buf, "    %s aborted\n", phase)
		}
		ids := lo.Keys(s.Failed)
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&buf, "    %s: %s\n", id, s.Failed[id])
		}
	}
	for _, e := range r.HookErrors {
		fmt.Fprintf(&buf, "  warning: %s\n", e)
	}
	return buf.String()
}
