package engine

import (
	"context"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
)

// ConflictFilter narrows ListOpenConflicts.
type ConflictFilter struct {
	// OriginatorUserID restricts results to one originator. nil = all.
	OriginatorUserID *int64
}

// ListOpenConflicts returns open conflicts, newest first.
func (e *Engine) ListOpenConflicts(ctx context.Context, f ConflictFilter) ([]ir.Conflict, error) {
	conflicts, err := e.store.ListOpenConflicts(ctx, f.OriginatorUserID)
	if err != nil {
		return nil, e.fail(ctx, "list open conflicts", err, "", "")
	}
	return conflicts, nil
}

// GetConflictDetail returns one conflict with its resolution metadata.
func (e *Engine) GetConflictDetail(ctx context.Context, conflictID string) (ir.Conflict, error) {
	c, err := e.store.ReadConflict(ctx, conflictID)
	if err != nil {
		return ir.Conflict{}, e.fail(ctx, "get conflict detail", err, "", conflictID)
	}
	return c, nil
}

// ListItemConflicts returns every conflict of one item, open or resolved,
// oldest first.
func (e *Engine) ListItemConflicts(ctx context.Context, itemID string) ([]ir.Conflict, error) {
	conflicts, err := e.store.ListItemConflicts(ctx, itemID)
	if err != nil {
		return nil, e.fail(ctx, "list item conflicts", err, itemID, "")
	}
	return conflicts, nil
}

// GetFieldValue returns the value revisionID recorded for field. When the
// revision did not change the field, or revisionID is empty, the item's
// current live value is returned.
func (e *Engine) GetFieldValue(ctx context.Context, revisionID, itemID, field string) (string, error) {
	if !ir.IsKnownField(field) {
		return "", newUnknownFieldError(itemID, field)
	}
	v, err := fieldValue(ctx, e.store, revisionID, itemID, field)
	if err != nil {
		return "", e.fail(ctx, "get field value", err, itemID, "")
	}
	return v, nil
}

// GetItem returns an item with its live values and head state.
func (e *Engine) GetItem(ctx context.Context, itemID string) (ir.Item, error) {
	item, err := e.store.ReadItem(ctx, itemID)
	if err != nil {
		return ir.Item{}, e.fail(ctx, "get item", err, itemID, "")
	}
	return item, nil
}

// ListItems returns every item ordered by id.
func (e *Engine) ListItems(ctx context.Context) ([]ir.Item, error) {
	items, err := e.store.ListItems(ctx)
	if err != nil {
		return nil, e.fail(ctx, "list items", err, "", "")
	}
	return items, nil
}

// HistoryEntry is one step of an item's version log.
type HistoryEntry struct {
	Version  ir.ItemVersion     `json:"version"`
	Revision ir.Revision        `json:"revision"`
	Fields   []ir.RevisionField `json:"fields"`
	Parents  []string           `json:"parents"`
	Head     bool               `json:"head"`
}

// History returns the item's revisions in VersionSeq order.
func (e *Engine) History(ctx context.Context, itemID string) ([]HistoryEntry, error) {
	item, err := e.store.ReadItem(ctx, itemID)
	if err != nil {
		return nil, e.fail(ctx, "history", err, itemID, "")
	}
	versions, err := e.store.ReadItemVersions(ctx, itemID)
	if err != nil {
		return nil, e.fail(ctx, "history", err, itemID, "")
	}
	edges, err := e.store.ReadItemParents(ctx, itemID)
	if err != nil {
		return nil, e.fail(ctx, "history", err, itemID, "")
	}
	parents := make(map[string][]string, len(edges))
	for _, edge := range edges {
		parents[edge.RevisionID] = append(parents[edge.RevisionID], edge.ParentRevisionID)
	}

	entries := make([]HistoryEntry, 0, len(versions))
	for _, v := range versions {
		rev, err := e.store.ReadRevision(ctx, v.RevisionID)
		if err != nil {
			return nil, e.fail(ctx, "history", err, itemID, "")
		}
		fields, err := e.store.ReadRevisionFields(ctx, v.RevisionID)
		if err != nil {
			return nil, e.fail(ctx, "history", err, itemID, "")
		}
		ps := parents[v.RevisionID]
		if ps == nil {
			ps = []string{}
		}
		entries = append(entries, HistoryEntry{
			Version:  v,
			Revision: rev,
			Fields:   fields,
			Parents:  ps,
			Head:     v.RevisionID == item.HeadRevisionID,
		})
	}
	return entries, nil
}

// Verify checks one item's version log and head state.
func (e *Engine) Verify(ctx context.Context, itemID string) (store.ItemReport, error) {
	report, err := e.store.VerifyItem(ctx, itemID)
	if err != nil {
		return store.ItemReport{}, e.fail(ctx, "verify", err, itemID, "")
	}
	return report, nil
}

// VerifyAll checks every item.
func (e *Engine) VerifyAll(ctx context.Context) ([]store.ItemReport, error) {
	reports, err := e.store.VerifyAll(ctx)
	if err != nil {
		return nil, e.fail(ctx, "verify all", err, "", "")
	}
	return reports, nil
}
