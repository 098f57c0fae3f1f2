package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vaultrev/internal/ir"
)

// PutSyncBase records the remote head an item was last synced to and the
// field values agreed at that point.
func (t *Tx) PutSyncBase(ctx context.Context, base ir.SyncBase) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.upsertSyncBaseSQL(),
		base.ItemID,
		base.RemoteRevisionID,
		base.Fields[ir.FieldName],
		base.Fields[ir.FieldContent],
		base.Fields[ir.FieldTags],
		base.SyncedAt,
	)
	return backendErr("put sync base", err)
}

// ReadSyncBase returns the item's sync base, or ErrNotFound when the item
// has never been synced.
func (r reader) ReadSyncBase(ctx context.Context, itemID string) (ir.SyncBase, error) {
	var name, content, tags string
	base := ir.SyncBase{ItemID: itemID}
	err := r.q.QueryRowContext(ctx, `
		SELECT RemoteRevisionId, Name, Content, Tags, SyncedAt
		FROM SyncBases WHERE ItemId = ?
	`, itemID).Scan(&base.RemoteRevisionID, &name, &content, &tags, &base.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SyncBase{}, fmt.Errorf("read sync base %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return ir.SyncBase{}, backendErr("read sync base", err)
	}
	base.Fields = map[string]string{
		ir.FieldName:    name,
		ir.FieldContent: content,
		ir.FieldTags:    tags,
	}
	return base, nil
}
