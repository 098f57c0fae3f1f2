package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
)

// ResolveRequest is an admin decision for one conflict.
type ResolveRequest struct {
	ConflictID  string
	AdminUserID int64

	// MergedValues maps field names to their final values. It may name
	// fields other than the conflict's own field.
	MergedValues map[string]string

	// Summary is stored as the conflict's resolution payload.
	Summary string

	// CreateMergeRevision records a merge revision with parents (remote,
	// local) and moves the head to it. When false, only the live values
	// are overwritten and no revision is recorded.
	CreateMergeRevision bool
}

// AdminResolveConflict applies an admin resolution and marks the conflict
// resolved, all in one transaction.
//
// Resolving an already-resolved conflict succeeds without writing anything,
// unless the engine was built with WithStrictResolve.
func (e *Engine) AdminResolveConflict(ctx context.Context, req ResolveRequest) (ok bool, err error) {
	ctx, end := e.metrics.span(ctx, "AdminResolveConflict",
		attribute.String("conflict_id", req.ConflictID),
		attribute.Bool("create_merge_revision", req.CreateMergeRevision),
	)
	defer func() { end(err) }()

	c, err := e.store.ReadConflict(ctx, req.ConflictID)
	if err != nil {
		return false, e.fail(ctx, "resolve conflict", err, "", req.ConflictID)
	}
	if err := checkFields(c.ItemID, req.MergedValues); err != nil {
		return false, err
	}

	now := e.clock.Now()
	var mergeID string
	applied := false
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.LockItem(ctx, c.ItemID); err != nil {
			return err
		}
		// Re-read under the lock: a concurrent resolver may have won.
		c, err := tx.ReadConflict(ctx, req.ConflictID)
		if err != nil {
			return err
		}
		if !c.IsOpen() {
			if e.strict {
				return &Error{
					Code:       ErrCodeAlreadyResolved,
					Message:    "conflict is already resolved",
					ItemID:     c.ItemID,
					ConflictID: c.ID,
				}
			}
			return nil
		}

		if req.CreateMergeRevision {
			changes := make(map[string]ir.FieldChange, len(req.MergedValues))
			for _, name := range sortedKeys(req.MergedValues) {
				old, err := fieldValue(ctx, tx, c.RemoteRevisionID, c.ItemID, name)
				if err != nil {
					return err
				}
				changes[name] = ir.FieldChange{Old: ir.Text(old), New: ir.Text(req.MergedValues[name])}
			}

			mergeID = e.ids.Generate()
			seq, err := e.appendRevision(ctx, tx, ir.Revision{
				ID:             mergeID,
				ItemID:         c.ItemID,
				AuthorUserID:   req.AdminUserID,
				CreatedAt:      now,
				BaseRevisionID: c.RemoteRevisionID,
				Type:           ir.RevisionMerge,
			}, changes, c.RemoteRevisionID, c.LocalRevisionID)
			if err != nil {
				return err
			}
			if err := e.advanceHead(ctx, tx, c.ItemID, mergeID, seq, changes, now); err != nil {
				return err
			}
		} else if len(req.MergedValues) > 0 {
			if err := tx.WriteItemFields(ctx, c.ItemID, req.MergedValues, now); err != nil {
				return err
			}
		}

		applied = true
		return tx.MarkConflictResolved(ctx, c.ID, req.AdminUserID, now, req.Summary)
	})
	if err != nil {
		return false, e.fail(ctx, "resolve conflict", err, c.ItemID, req.ConflictID)
	}

	if !applied {
		e.logger.InfoContext(ctx, "conflict already resolved",
			"conflict_id", req.ConflictID,
			"item_id", c.ItemID,
		)
		return true, nil
	}

	if mergeID != "" {
		e.metrics.mergeCreated(ctx, sourceAdmin)
	}
	e.metrics.conflictResolved(ctx, mergeID != "")
	e.logger.InfoContext(ctx, "conflict resolved",
		"conflict_id", req.ConflictID,
		"item_id", c.ItemID,
		"field", c.FieldName,
		"admin_user_id", req.AdminUserID,
		"merge_revision_id", mergeID,
	)
	return true, nil
}
