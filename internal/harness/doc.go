// Package harness runs redaction conformance scenarios.
//
// A scenario is a YAML file naming a fixture (rows and file bytes), a set of
// actors, a flow of redaction requests and assertions on what they leave
// behind:
//
//	name: restore_file_version
//	description: Un-hiding an old file version stages it and purges the hidden copy
//	actors:
//	  admin: {id: 1, can_view_deleted: true}
//	flow:
//	  - actor: admin
//	    kind: oldimage
//	    subject: File:Photo.png
//	    ids: ["20240102000000!Photo.png"]
//	    clear: content
//	    expect:
//	      result: all
//	assertions:
//	  - type: storage_ops
//	    step: 0
//	    phase: stage
//	    count: 1
//
// Every step runs through a real revdel.Coordinator over an in-memory sqlite
// store, an in-memory file repo, a page cache and an in-process notifier.
// A step's race clause simulates a second writer between the read and the
// compare-and-swap of one row.
//
// The per-step statuses form a trace that is compared byte for byte against
// testdata/golden/<name>.golden. Operation ids are fixed per scenario so the
// trace is deterministic.
package harness
