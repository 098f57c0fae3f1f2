// Package store provides the relational backend for vaultrev.
//
// The store holds an append-only revision log with:
//   - Revisions: immutable commit-like records, one per edit or merge
//   - RevisionFields: the (old, new) value pair per changed field
//   - ItemVersions: per-item monotonic VersionSeq to revision mapping
//   - RevisionParents: DAG edges (merge revisions have two)
//
// plus two mutable tables: VaultItems (live field values and the
// denormalized HeadRevision/VersionSeq pair) and Conflicts.
//
// # Dialects
//
// Two engines sit behind the same Store type. SQLite (file based) is
// opened with Open and MySQL or a Dolt sql-server (network based) with
// OpenMySQL. Callers never branch on the engine; only the schema, the
// per-item lock statement and upserts differ, and those live in dialect.go.
//
// # Unit of Work
//
// Every multi-row write runs inside Store.InTx. The callback receives a Tx
// that exposes the row operations and all reads, so a transaction reads
// its own writes. Tx.LockItem must be the first statement of any
// transaction that assigns a VersionSeq; it is the per-item serialization
// point that keeps two writers from computing the same next_seq.
//
// # Deterministic Query Results
//
// Every list query has an explicit ORDER BY and returns an empty slice,
// never nil, when nothing matches.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
