package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/revdel/internal/revdel"
	"github.com/roach88/revdel/internal/testutil"
	"github.com/roach88/revdel/internal/visibility"
)

// Scenario is a redaction conformance test: a fixture, a flow of redaction
// requests with expected outcomes, and assertions on the final rows, files
// and events.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden snapshots are stored
	// under this name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the starting rows and blobs. FixtureFile loads them from a
	// YAML file instead, relative to the scenario file. With neither, the
	// scenario starts from testutil.Standard().
	Fixture     *testutil.Fixture `yaml:"fixture,omitempty"`
	FixtureFile string            `yaml:"fixture_file,omitempty"`

	// Actors names the identities flow steps act as.
	Actors map[string]ActorSpec `yaml:"actors"`

	// Flow is the redactions to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	// Supported types: final_state, storage_ops, file_exists, event_count
	Assertions []Assertion `yaml:"assertions"`

	// OperationID is the fixed operation id of every run, so snapshots are
	// deterministic. Defaults to "test-operation".
	OperationID string `yaml:"operation_id,omitempty"`
}

// ActorSpec declares one actor's rights.
type ActorSpec struct {
	ID             int64 `yaml:"id"`
	CanViewDeleted bool  `yaml:"can_view_deleted"`
	CanSuppress    bool  `yaml:"can_suppress"`
}

// FlowStep is one redaction request.
type FlowStep struct {
	// Actor is a key of Scenario.Actors.
	Actor string `yaml:"actor"`

	Kind    string   `yaml:"kind"`
	Subject string   `yaml:"subject"`
	IDs     []string `yaml:"ids"`

	// Set and Clear are bit names, e.g. "content|comment".
	Set   string `yaml:"set,omitempty"`
	Clear string `yaml:"clear,omitempty"`

	Suppress   bool   `yaml:"suppress,omitempty"`
	AckCurrent bool   `yaml:"ack_current,omitempty"`
	Reason     string `yaml:"reason,omitempty"`

	// Race simulates another writer changing a row between the read and the
	// compare-and-swap of this step.
	Race *Race `yaml:"race,omitempty"`

	// Expect specifies the expected run result. If nil, the step only has to
	// run.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Race is a competing write. It fires once, right before the first update
// against Table whose filter matches every Where pair, and sets Column to
// Bits on the rows matching Where.
type Race struct {
	Table  string         `yaml:"table"`
	Where  map[string]any `yaml:"where"`
	Column string         `yaml:"column"`
	Bits   string         `yaml:"bits"`
}

// ExpectClause specifies the expected run result.
type ExpectClause struct {
	// Error is the expected structural error code, e.g. "LOCKOUT". Empty
	// means the run must not fail.
	Error string `yaml:"error,omitempty"`

	// Result is the expected "none", "partial" or "all".
	Result string `yaml:"result,omitempty"`

	// Outcomes maps ids to their expected outcome kind. Subset match.
	Outcomes map[string]string `yaml:"outcomes,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Query table and verify expected values
	// - "storage_ops": Check how many ops a migration phase attempted
	// - "file_exists": Check a fixture blob's presence in a zone
	// - "event_count": Check how many visibility changes were announced
	Type string `yaml:"type"`

	// Table is the table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Step is the flow step index (used by storage_ops).
	Step int `yaml:"step,omitempty"`

	// Phase is "stage", "delete" or "cleanup" (used by storage_ops).
	Phase string `yaml:"phase,omitempty"`

	// Count is the expected number (used by storage_ops, event_count).
	Count int `yaml:"count,omitempty"`

	// Zone is "public" or "deleted" and ArchiveName picks the fixture blob
	// (used by file_exists). Absent inverts the check.
	Zone        string `yaml:"zone,omitempty"`
	ArchiveName string `yaml:"archive_name,omitempty"`
	Absent      bool   `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertStorageOps = "storage_ops"
	AssertFileExists = "file_exists"
	AssertEventCount = "event_count"
)

// File zones.
const (
	ZonePublic  = "public"
	ZoneDeleted = "deleted"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A fixture_file is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving fixture_file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	if err := decodeStrict(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.FixtureFile != "" && !filepath.IsAbs(scenario.FixtureFile) && basePath != "" {
		scenario.FixtureFile = filepath.Join(basePath, scenario.FixtureFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// decodeStrict rejects unknown fields (catches typos like "assertion:" vs
// "assertions:").
func decodeStrict(data []byte, v any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(v)
}

// fixture returns the rows and blobs the scenario starts from.
func (s *Scenario) fixture() (testutil.Fixture, error) {
	switch {
	case s.Fixture != nil:
		return *s.Fixture, nil
	case s.FixtureFile != "":
		data, err := os.ReadFile(s.FixtureFile)
		if err != nil {
			return testutil.Fixture{}, fmt.Errorf("failed to read fixture file: %w", err)
		}
		var f testutil.Fixture
		if err := decodeStrict(data, &f); err != nil {
			return testutil.Fixture{}, fmt.Errorf("failed to parse fixture file: %w", err)
		}
		return f, nil
	}
	return testutil.Standard(), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture != nil && s.FixtureFile != "" {
		return fmt.Errorf("fixture and fixture_file are mutually exclusive")
	}
	if s.FixtureFile != "" {
		if _, err := os.Stat(s.FixtureFile); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", s.FixtureFile)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step, s.Actors); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Flow)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step FlowStep, actors map[string]ActorSpec) error {
	if step.Actor == "" {
		return fmt.Errorf("flow[%d]: actor is required", i)
	}
	if _, ok := actors[step.Actor]; !ok {
		return fmt.Errorf("flow[%d]: actor %q is not declared in actors", i, step.Actor)
	}
	if _, err := revdel.ParseKind(step.Kind); err != nil {
		return fmt.Errorf("flow[%d]: %w", i, err)
	}
	if len(step.IDs) == 0 {
		return fmt.Errorf("flow[%d]: ids list is required and must be non-empty", i)
	}
	for _, bits := range []string{step.Set, step.Clear} {
		if _, err := visibility.Parse(bits); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	if r := step.Race; r != nil {
		if r.Table == "" || r.Column == "" || len(r.Where) == 0 {
			return fmt.Errorf("flow[%d].race: table, column and where are required", i)
		}
		if _, err := visibility.Parse(r.Bits); err != nil {
			return fmt.Errorf("flow[%d].race: %w", i, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStorageOps:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range for storage_ops", index, a.Step)
		}
		switch a.Phase {
		case revdel.PhaseStage, revdel.PhaseDelete, revdel.PhaseCleanup:
		default:
			return fmt.Errorf("assertions[%d]: unknown phase %q for storage_ops", index, a.Phase)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for storage_ops", index)
		}
	case AssertFileExists:
		if a.Zone != ZonePublic && a.Zone != ZoneDeleted {
			return fmt.Errorf("assertions[%d]: zone must be %q or %q for file_exists", index, ZonePublic, ZoneDeleted)
		}
		if a.ArchiveName == "" {
			return fmt.Errorf("assertions[%d]: archive_name is required for file_exists", index)
		}
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
