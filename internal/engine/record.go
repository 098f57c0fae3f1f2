package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
)

// CreateItemRequest describes a new item. ItemID may be empty, in which
// case one is generated; the sync driver passes the peer's id.
type CreateItemRequest struct {
	ItemID       string
	ParentItemID string
	AuthorUserID int64
	Values       map[string]string
}

// RecordRequest describes one edit of one item.
type RecordRequest struct {
	ItemID         string
	AuthorUserID   int64
	Type           ir.RevisionType // "" or edit; merges are engine-made
	Changes        map[string]ir.FieldChange
	BaseRevisionID string // "" = no base
}

// RecordResult reports what a write did.
type RecordResult struct {
	ItemID          string   `json:"item_id"`
	RevisionID      string   `json:"revision_id"`
	VersionSeq      int64    `json:"version_seq"`
	FastForward     bool     `json:"fast_forward"`
	MergeRevisionID string   `json:"merge_revision_id,omitempty"`
	ConflictIDs     []string `json:"conflict_ids"`
}

// HeadRevisionID returns the revision that is head after the write, or ""
// when the write left the head unchanged.
func (r RecordResult) HeadRevisionID() string {
	switch {
	case r.FastForward:
		return r.RevisionID
	case r.MergeRevisionID != "":
		return r.MergeRevisionID
	}
	return ""
}

// CreateItem inserts an item and records its first revision as a
// fast-forward, in one transaction. Every supplied value is recorded with a
// NULL old value.
func (e *Engine) CreateItem(ctx context.Context, req CreateItemRequest) (res RecordResult, err error) {
	itemID := req.ItemID
	if itemID == "" {
		itemID = e.ids.Generate()
	}
	ctx, end := e.metrics.span(ctx, "CreateItem", attribute.String("item_id", itemID))
	defer func() { end(err) }()

	if err := checkFields(itemID, req.Values); err != nil {
		return RecordResult{}, err
	}

	changes := make(map[string]ir.FieldChange, len(req.Values))
	for name, v := range req.Values {
		changes[name] = ir.FieldChange{Old: ir.NullText(), New: ir.Text(v)}
	}

	revID := e.ids.Generate()
	now := e.clock.Now()
	res = RecordResult{ItemID: itemID, RevisionID: revID, FastForward: true, ConflictIDs: []string{}}

	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertItem(ctx, ir.Item{
			ID:           itemID,
			ParentItemID: req.ParentItemID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		if _, err := tx.LockItem(ctx, itemID); err != nil {
			return err
		}

		seq, err := e.appendRevision(ctx, tx, ir.Revision{
			ID:           revID,
			ItemID:       itemID,
			AuthorUserID: req.AuthorUserID,
			CreatedAt:    now,
			Type:         ir.RevisionEdit,
		}, changes)
		if err != nil {
			return err
		}
		res.VersionSeq = seq
		return e.advanceHead(ctx, tx, itemID, revID, seq, changes, now)
	})
	if err != nil {
		return RecordResult{}, e.fail(ctx, "create item", err, itemID, "")
	}

	e.metrics.revisionRecorded(ctx, pathCreate)
	e.logger.InfoContext(ctx, "item created",
		"item_id", itemID,
		"revision_id", revID,
		"author_user_id", req.AuthorUserID,
	)
	return res, nil
}

// RecordRevision appends a revision to an item.
//
// The revision, its fields, its version row and the parent edge to its base
// are always written. If the base is empty or equals the current head, the
// write is a fast-forward and the head advances to the new revision.
// Otherwise conflict detection runs against the current head in the same
// transaction: a clean merge synthesizes a merge revision and advances the
// head to it, and any conflicting field leaves the head untouched and
// enqueues one conflict per conflicting field.
func (e *Engine) RecordRevision(ctx context.Context, req RecordRequest) (res RecordResult, err error) {
	ctx, end := e.metrics.span(ctx, "RecordRevision",
		attribute.String("item_id", req.ItemID),
		attribute.Int("fields", len(req.Changes)),
	)
	defer func() { end(err) }()

	revType := req.Type
	if revType == "" {
		revType = ir.RevisionEdit
	}
	if revType != ir.RevisionEdit {
		return RecordResult{}, &Error{
			Code:    ErrCodeInvalidRevisionType,
			Message: fmt.Sprintf("revision type %q cannot be recorded directly; merge revisions come from detection or resolution", revType),
			ItemID:  req.ItemID,
		}
	}
	if err := checkFields(req.ItemID, req.Changes); err != nil {
		return RecordResult{}, err
	}

	revID := e.ids.Generate()
	now := e.clock.Now()
	res = RecordResult{ItemID: req.ItemID, RevisionID: revID, ConflictIDs: []string{}}

	var out detectOutcome
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		head, err := tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}

		if err := checkOwnRevision(ctx, tx, req.ItemID, req.BaseRevisionID, newInvalidBaseError); err != nil {
			return err
		}

		seq, err := e.appendRevision(ctx, tx, ir.Revision{
			ID:             revID,
			ItemID:         req.ItemID,
			AuthorUserID:   req.AuthorUserID,
			CreatedAt:      now,
			BaseRevisionID: req.BaseRevisionID,
			Type:           revType,
		}, req.Changes, req.BaseRevisionID)
		if err != nil {
			return err
		}
		res.VersionSeq = seq

		if req.BaseRevisionID == "" || req.BaseRevisionID == head.HeadRevisionID {
			res.FastForward = true
			return e.advanceHead(ctx, tx, req.ItemID, revID, seq, req.Changes, now)
		}

		out, err = e.detectInTx(ctx, tx, head, DetectRequest{
			ItemID:           req.ItemID,
			LocalRevisionID:  revID,
			BaseRevisionID:   req.BaseRevisionID,
			RemoteRevisionID: head.HeadRevisionID,
			OriginatorUserID: req.AuthorUserID,
		}, now)
		if err != nil {
			return err
		}
		res.ConflictIDs = out.conflictIDs
		res.MergeRevisionID = out.mergeRevisionID
		return nil
	})
	if err != nil {
		return RecordResult{}, e.fail(ctx, "record revision", err, req.ItemID, "")
	}

	e.reportDetection(ctx, req.ItemID, out)
	if res.FastForward {
		e.metrics.revisionRecorded(ctx, pathFastForward)
	} else {
		e.metrics.revisionRecorded(ctx, pathDivergent)
	}
	e.logger.InfoContext(ctx, "revision recorded",
		"item_id", req.ItemID,
		"revision_id", revID,
		"version_seq", res.VersionSeq,
		"fast_forward", res.FastForward,
		"merge_revision_id", res.MergeRevisionID,
		"conflicts", len(res.ConflictIDs),
	)
	return res, nil
}
