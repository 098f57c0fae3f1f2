// Package engine implements the vaultrev revision and conflict engine.
//
// The engine is the only writer of revision history. Every caller-facing
// write runs as one store transaction:
//
//	RecordRevision
//	  -> lock item, append revision + fields + version row + parent edge
//	  -> fast-forward: advance head, write live values
//	  -> divergent:    detect per field
//	                     -> all clean: synthesize merge revision, advance head
//	                     -> any conflict: enqueue conflicts, head unchanged
//
//	AdminResolveConflict
//	  -> merge revision with parents (remote, local), or live write only
//	  -> mark conflict resolved
//
// Partial auto-merge is never applied: if one field of a divergence
// conflicts, the fields that merged cleanly are dropped as well and the
// head stays on the remote revision until an admin resolves.
//
// DETERMINISM:
// Changed fields are processed in field-name order. Revision and conflict
// ids come from the injected IDGenerator and timestamps from the injected
// Clock, so a scenario replayed with fixed generators produces identical
// rows.
//
// ERRORS:
// Backend failures are logged and returned as *Error with code
// BACKEND_UNAVAILABLE. The engine never retries; retry policy belongs to
// the caller (see internal/syncer). Merge ambiguity and primitive failures
// are logged and recorded as conflicts, never returned.
package engine
