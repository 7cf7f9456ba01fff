package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/revdel"
	"github.com/roach88/revdel/internal/store"
	"github.com/roach88/revdel/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s/%s %s\n",
				event.Step, event.Kind, event.Subject, event.State, event.Result, event.Error)
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Repo    *filestore.Repo
	Fixture testutil.Fixture
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store and repo access for final_state and
// file_exists assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertStorageOps:
			err = assertStorageOps(result, assertion)
		case AssertFileExists:
			if actx == nil || actx.Repo == nil {
				err = fmt.Errorf("assertion[%d]: file_exists requires a file repo", i)
			} else {
				err = assertFileExists(actx.Repo, actx.Fixture, assertion)
			}
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected values (subset semantics). The query goes
// through the store's validated query IR, so table and column names never
// reach SQL unchecked.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	columns := sortedKeys(assertion.Expect)
	rows, err := st.Select(ctx, queryir.Select{
		From:    assertion.Table,
		Columns: columns,
		Filter:  whereFilter(assertion.Where),
	})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	for _, key := range columns {
		expected, actual := assertion.Expect[key], rows[0][key]
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

// assertStorageOps checks how many ops one migration phase of a step
// attempted. A step that ran no migration attempted zero.
func assertStorageOps(result *Result, assertion Assertion) error {
	if assertion.Step >= len(result.Trace) {
		return &AssertionError{
			Type:     AssertStorageOps,
			Expected: fmt.Sprintf("flow step %d", assertion.Step),
			Actual:   fmt.Sprintf("only %d steps ran", len(result.Trace)),
			Trace:    result.Trace,
		}
	}

	count := 0
	if s := result.Trace[assertion.Step].Storage; s != nil {
		switch assertion.Phase {
		case revdel.PhaseStage:
			count = s.Stage
		case revdel.PhaseDelete:
			count = s.Delete
		case revdel.PhaseCleanup:
			count = s.Cleanup
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStorageOps,
			Expected: fmt.Sprintf("%d %s ops in step %d", assertion.Count, assertion.Phase, assertion.Step),
			Actual:   fmt.Sprintf("%d ops", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFileExists checks a fixture blob's presence in a zone. The public
// zone holds it at its archive path, the deleted zone under its content key.
func assertFileExists(repo *filestore.Repo, fixture testutil.Fixture, assertion Assertion) error {
	blob, ok := lo.Find(fixture.Blobs, func(b testutil.Blob) bool { return b.ArchiveName == assertion.ArchiveName })
	if !ok {
		return fmt.Errorf("file_exists: no fixture blob with archive name %q", assertion.ArchiveName)
	}

	var (
		exists bool
		err    error
		where  string
	)
	if assertion.Zone == ZonePublic {
		where = blob.Path()
		exists, err = repo.Exists(where)
	} else {
		where = blob.Key()
		exists, err = repo.ExistsDeleted(where)
	}
	if err != nil {
		return fmt.Errorf("file_exists: stat %s: %w", where, err)
	}

	if exists == assertion.Absent {
		want, got := "present", "absent"
		if assertion.Absent {
			want, got = got, want
		}
		return &AssertionError{
			Type:     AssertFileExists,
			Expected: fmt.Sprintf("%s %s in %s zone (%s)", assertion.ArchiveName, want, assertion.Zone, where),
			Actual:   got,
		}
	}
	return nil
}

// assertEventCount checks how many visibility changes were announced.
func assertEventCount(result *Result, assertion Assertion) error {
	if len(result.Events) != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d visibility change events", assertion.Count),
			Actual:   fmt.Sprintf("%d events", len(result.Events)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// toSQLValue converts a YAML-parsed value to one the query IR accepts.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from state tables.
// Drivers return integers and text in different Go types, so values are
// compared after conversion to the expected value's type.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		got, err := cast.ToStringE(actual)
		return err == nil && got == exp
	case int, int64:
		got, err := cast.ToInt64E(actual)
		return err == nil && got == cast.ToInt64(exp)
	case bool:
		got, err := cast.ToBoolE(actual)
		return err == nil && got == exp
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
