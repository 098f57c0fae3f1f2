// Package harness runs conformance scenarios against the revision engine.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: same_field_conflict
//	description: "Concurrent edits of one field open a conflict"
//	steps:
//	  - op: create
//	    item: note
//	    as: base
//	    values: { Name: x }
//	  - op: edit
//	    item: note
//	    base: base
//	    as: remote
//	    author: 2
//	    values: { Name: x_remote }
//	  - op: edit
//	    item: note
//	    base: base
//	    as: local
//	    author: 3
//	    values: { Name: x_local }
//	    conflicts_as: [c1]
//	    expect: { fast_forward: false, conflicts: 1 }
//	assertions:
//	  - type: head
//	    item: note
//	    rev: remote
//	  - type: open_conflicts
//	    count: 1
//
// Names given with item, as, merge_as and conflicts_as are aliases. Later
// steps and assertions refer to items, revisions and conflicts by alias;
// the harness maps them to the generated ids. An edit's base may also be
// "head", meaning the item's head when the step runs.
//
// # Step Operations
//
//   - create: CreateItem with values
//   - edit: RecordRevision; old values are taken from the live item
//   - detect: DetectAndEnqueueConflicts for local, base and remote aliases
//   - resolve: AdminResolveConflict; as binds the resulting head
//
// # Assertion Types
//
//   - head: the item's head revision
//   - field: a live value, or GetFieldValue when rev is given
//   - open_conflicts: number of open conflicts, optionally for one item
//   - conflict: a conflict's field and status
//   - versions: version row count, with VersionSeq checked to be 1..n
//   - parents: a revision's parent set
//   - verify: the store integrity check passes for the item
//
// # Deterministic Testing
//
// Every scenario runs against a fresh SQLite database with sequential ids
// (testutil.SequentialIDs) and a deterministic clock
// (testutil.DeterministicClock), so the step trace and final state are
// byte-identical across runs and can be compared against golden files.
package harness
