package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/merge"
	"github.com/roach88/vaultrev/internal/store"
)

// DetectRequest names the three revisions of a divergence.
type DetectRequest struct {
	ItemID           string
	LocalRevisionID  string
	BaseRevisionID   string
	RemoteRevisionID string
	OriginatorUserID int64
}

// escalation is one field that could not be merged automatically.
type escalation struct {
	conflictID string
	field      string
	outcome    merge.Outcome
	err        error
}

type detectOutcome struct {
	conflictIDs     []string
	mergeRevisionID string
	escalations     []escalation
}

// DetectAndEnqueueConflicts runs conflict detection for a revision that was
// already recorded, in its own transaction.
//
// Conflicts are enqueued exactly as RecordRevision would. The merge revision
// is only synthesized while RemoteRevisionID is still the item head; if the
// head has moved the clean fields are dropped and a STALE_HEAD error is
// returned.
func (e *Engine) DetectAndEnqueueConflicts(ctx context.Context, req DetectRequest) (ids []string, err error) {
	ctx, end := e.metrics.span(ctx, "DetectAndEnqueueConflicts",
		attribute.String("item_id", req.ItemID),
		attribute.String("local_revision_id", req.LocalRevisionID),
	)
	defer func() { end(err) }()

	now := e.clock.Now()
	var out detectOutcome
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		head, err := tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if req.LocalRevisionID == "" {
			return &Error{Code: ErrCodeNotFound, Message: "local revision is required", ItemID: req.ItemID, Err: store.ErrNotFound}
		}
		for _, id := range []string{req.LocalRevisionID, req.BaseRevisionID, req.RemoteRevisionID} {
			if err := checkOwnRevision(ctx, tx, req.ItemID, id, newMissingRevisionError); err != nil {
				return err
			}
		}
		out, err = e.detectInTx(ctx, tx, head, req, now)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, "detect conflicts", err, req.ItemID, "")
	}

	e.reportDetection(ctx, req.ItemID, out)
	return out.conflictIDs, nil
}

// detectInTx merges every field the local revision changed. The caller
// holds the item lock and passes the head it observed.
func (e *Engine) detectInTx(ctx context.Context, tx *store.Tx, head ir.ItemHead, req DetectRequest, now int64) (detectOutcome, error) {
	out := detectOutcome{conflictIDs: []string{}}

	fields, err := tx.ReadRevisionFields(ctx, req.LocalRevisionID)
	if err != nil {
		return out, err
	}

	staged := make(map[string]ir.FieldChange, len(fields))
	for _, f := range fields {
		baseVal, err := fieldValue(ctx, tx, req.BaseRevisionID, req.ItemID, f.FieldName)
		if err != nil {
			return out, err
		}
		remoteVal, err := fieldValue(ctx, tx, req.RemoteRevisionID, req.ItemID, f.FieldName)
		if err != nil {
			return out, err
		}

		res, mergeErr := e.merger.Merge(baseVal, f.NewValue.String, remoteVal)
		outcome := merge.Classify(res, mergeErr)
		if outcome == merge.OutcomeClean {
			staged[f.FieldName] = ir.FieldChange{Old: ir.Text(remoteVal), New: ir.Text(res.Text)}
			continue
		}

		conflictID := e.ids.Generate()
		if err := tx.InsertConflict(ctx, ir.Conflict{
			ID:               conflictID,
			ItemID:           req.ItemID,
			FieldName:        f.FieldName,
			BaseRevisionID:   req.BaseRevisionID,
			LocalRevisionID:  req.LocalRevisionID,
			RemoteRevisionID: req.RemoteRevisionID,
			OriginatorUserID: req.OriginatorUserID,
			CreatedAt:        now,
		}); err != nil {
			return out, err
		}
		out.conflictIDs = append(out.conflictIDs, conflictID)
		out.escalations = append(out.escalations, escalation{
			conflictID: conflictID,
			field:      f.FieldName,
			outcome:    outcome,
			err:        mergeErr,
		})
	}

	// One conflicting field suppresses every staged merge.
	if len(out.conflictIDs) > 0 || len(staged) == 0 {
		return out, nil
	}
	if head.HeadRevisionID != req.RemoteRevisionID {
		return out, &Error{
			Code:    ErrCodeStaleHead,
			Message: "remote revision " + req.RemoteRevisionID + " is no longer head (head is " + head.HeadRevisionID + ")",
			ItemID:  req.ItemID,
		}
	}

	mergeID := e.ids.Generate()
	seq, err := e.appendRevision(ctx, tx, ir.Revision{
		ID:             mergeID,
		ItemID:         req.ItemID,
		AuthorUserID:   req.OriginatorUserID,
		CreatedAt:      now,
		BaseRevisionID: req.RemoteRevisionID,
		Type:           ir.RevisionMerge,
	}, staged, req.RemoteRevisionID, req.LocalRevisionID)
	if err != nil {
		return out, err
	}
	if err := e.advanceHead(ctx, tx, req.ItemID, mergeID, seq, staged, now); err != nil {
		return out, err
	}
	out.mergeRevisionID = mergeID
	return out, nil
}

// reportDetection logs and counts the outcome of a committed detection.
// Primitive failures log at Error since they point at the merge primitive
// rather than at concurrent edits.
func (e *Engine) reportDetection(ctx context.Context, itemID string, out detectOutcome) {
	for _, esc := range out.escalations {
		attrs := []any{
			"kind", string(esc.outcome),
			"item_id", itemID,
			"field", esc.field,
			"conflict_id", esc.conflictID,
		}
		if esc.outcome == merge.OutcomePrimitiveFailure {
			e.logger.ErrorContext(ctx, "merge primitive failed, conflict enqueued", append(attrs, "error", esc.err)...)
		} else {
			e.logger.WarnContext(ctx, "merge ambiguous, conflict enqueued", attrs...)
		}
		e.metrics.conflictOpened(ctx, esc.outcome)
	}
	if out.mergeRevisionID != "" {
		e.metrics.mergeCreated(ctx, sourceAuto)
		e.logger.InfoContext(ctx, "merge revision created",
			"item_id", itemID,
			"merge_revision_id", out.mergeRevisionID,
			"source", sourceAuto,
		)
	}
}

// fieldReader is satisfied by both *store.Store and *store.Tx.
type fieldReader interface {
	ReadRevisionField(ctx context.Context, revisionID, field string) (ir.RevisionField, error)
	LiveFieldValue(ctx context.Context, itemID, field string) (string, error)
}

// fieldValue returns the value a revision recorded for a field. If the
// revision did not touch the field, or revisionID is empty, it returns the
// item's current live value instead. It does not walk ancestors.
func fieldValue(ctx context.Context, r fieldReader, revisionID, itemID, field string) (string, error) {
	if revisionID != "" {
		f, err := r.ReadRevisionField(ctx, revisionID, field)
		if err == nil {
			return f.NewValue.String, nil
		}
		if !IsNotFound(err) {
			return "", err
		}
	}
	return r.LiveFieldValue(ctx, itemID, field)
}
