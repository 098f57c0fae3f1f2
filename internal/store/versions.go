package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultrev/internal/ir"
)

// NextVersionSeq returns max(VersionSeq)+1 for the item, or 1 when the item
// has no versions yet. Call LockItem first in the same transaction.
func (t *Tx) NextVersionSeq(ctx context.Context, itemID string) (int64, error) {
	var next int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(VersionSeq), 0) + 1 FROM ItemVersions WHERE ItemId = ?
	`, itemID).Scan(&next)
	if err != nil {
		return 0, backendErr("next version seq", err)
	}
	return next, nil
}

// InsertItemVersion links a version sequence number to a revision.
func (t *Tx) InsertItemVersion(ctx context.Context, v ir.ItemVersion) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ItemVersions (ItemId, VersionSeq, RevisionId) VALUES (?, ?, ?)
	`, v.ItemID, v.VersionSeq, v.RevisionID)
	return backendErr("insert item version", err)
}

// InsertParent adds a DAG edge. Self-loops are rejected before reaching
// the backend.
func (t *Tx) InsertParent(ctx context.Context, edge ir.ParentEdge) error {
	if edge.RevisionID == edge.ParentRevisionID {
		return fmt.Errorf("insert parent: revision %s cannot be its own parent", edge.RevisionID)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO RevisionParents (RevisionId, ParentRevisionId) VALUES (?, ?)
	`, edge.RevisionID, edge.ParentRevisionID)
	return backendErr("insert parent", err)
}

// ReadItemVersions returns the item's version log ordered by VersionSeq.
func (r reader) ReadItemVersions(ctx context.Context, itemID string) ([]ir.ItemVersion, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT ItemId, VersionSeq, RevisionId FROM ItemVersions
		WHERE ItemId = ?
		ORDER BY VersionSeq ASC
	`, itemID)
	if err != nil {
		return nil, backendErr("read item versions", err)
	}
	defer rows.Close()

	versions := []ir.ItemVersion{}
	for rows.Next() {
		var v ir.ItemVersion
		if err := rows.Scan(&v.ItemID, &v.VersionSeq, &v.RevisionID); err != nil {
			return nil, backendErr("scan item version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate item versions", err)
	}
	return versions, nil
}

// ReadParents returns the parent edges of one revision.
func (r reader) ReadParents(ctx context.Context, revisionID string) ([]ir.ParentEdge, error) {
	return r.queryParents(ctx, `
		SELECT RevisionId, ParentRevisionId FROM RevisionParents
		WHERE RevisionId = ?
		ORDER BY ParentRevisionId ASC
	`, revisionID)
}

// ReadItemParents returns every parent edge of the item's revisions.
func (r reader) ReadItemParents(ctx context.Context, itemID string) ([]ir.ParentEdge, error) {
	return r.queryParents(ctx, `
		SELECT p.RevisionId, p.ParentRevisionId
		FROM RevisionParents p
		JOIN Revisions r ON r.RevisionId = p.RevisionId
		WHERE r.ItemId = ?
		ORDER BY p.RevisionId ASC, p.ParentRevisionId ASC
	`, itemID)
}

func (r reader) queryParents(ctx context.Context, query string, arg string) ([]ir.ParentEdge, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, backendErr("read parents", err)
	}
	defer rows.Close()

	edges := []ir.ParentEdge{}
	for rows.Next() {
		var e ir.ParentEdge
		if err := rows.Scan(&e.RevisionID, &e.ParentRevisionID); err != nil {
			return nil, backendErr("scan parent", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate parents", err)
	}
	return edges, nil
}
