package testutil

// StaticOperationID names every redaction run with the same operation id.
//
// Golden status snapshots embed the operation id, so scenarios that run
// several redactions use this to keep snapshots byte-identical across runs.
//
// Thread-safety: StaticOperationID is stateless and safe for concurrent use.
type StaticOperationID struct {
	id string
}

// NewStaticOperationID creates a generator returning id.
//
// The id is typically set in the scenario YAML:
//
//	operation_id: "op-00000000-0000-0000-0000-000000000001"
//
// If id is empty, Generate() returns "test-operation".
func NewStaticOperationID(id string) *StaticOperationID {
	if id == "" {
		id = "test-operation"
	}
	return &StaticOperationID{id: id}
}

// Generate returns the fixed id.
//
// Implements revdel.OperationIDGenerator.
func (g *StaticOperationID) Generate() string {
	return g.id
}
