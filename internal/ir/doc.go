// Package ir provides the shared value types for vaultrev.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Revisions, fields, versions and parent edges are immutable once written
//   - Nullable text columns are carried as sql.NullString, never as ""
//   - An empty revision id string means "no revision" (SQL NULL)
//   - All timestamps are Unix seconds (int64)
package ir
