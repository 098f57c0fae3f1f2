package store

// Dialect names the SQL engine behind a Store.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite3"
	DialectMySQL  Dialect = "mysql"
)

// lockItemSQL returns the statement that takes the per-item write lock and
// reads the head state.
//
// SQLite has no row locks. A no-op UPDATE takes the database write lock
// for the rest of the transaction, after which the head is read normally.
func (d Dialect) lockItemSQL() (lock string, read string) {
	const readHead = `SELECT HeadRevision, VersionSeq FROM VaultItems WHERE ItemId = ?`
	if d == DialectMySQL {
		return "", readHead + " FOR UPDATE"
	}
	return `UPDATE VaultItems SET VersionSeq = VersionSeq WHERE ItemId = ?`, readHead
}

// upsertSyncBaseSQL returns the insert-or-replace statement for SyncBases.
func (d Dialect) upsertSyncBaseSQL() string {
	const insert = `INSERT INTO SyncBases (ItemId, RemoteRevisionId, Name, Content, Tags, SyncedAt)
		VALUES (?, ?, ?, ?, ?, ?)`
	if d == DialectMySQL {
		return insert + `
		ON DUPLICATE KEY UPDATE
			RemoteRevisionId = VALUES(RemoteRevisionId),
			Name = VALUES(Name),
			Content = VALUES(Content),
			Tags = VALUES(Tags),
			SyncedAt = VALUES(SyncedAt)`
	}
	return insert + `
		ON CONFLICT(ItemId) DO UPDATE SET
			RemoteRevisionId = excluded.RemoteRevisionId,
			Name = excluded.Name,
			Content = excluded.Content,
			Tags = excluded.Tags,
			SyncedAt = excluded.SyncedAt`
}
