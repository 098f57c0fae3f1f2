package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vaultrev/internal/ir"
)

const conflictColumns = `ConflictId, ItemId, FieldName, BaseRevisionId, LocalRevisionId, RemoteRevisionId,
	OriginatorUserId, CreatedAt, Status, ResolvedByAdminUserId, ResolvedAt, ResolutionPayload`

// InsertConflict enqueues a conflict record. New conflicts are always open.
func (t *Tx) InsertConflict(ctx context.Context, c ir.Conflict) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO Conflicts (ConflictId, ItemId, FieldName, BaseRevisionId, LocalRevisionId,
			RemoteRevisionId, OriginatorUserId, CreatedAt, Status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.ItemID,
		c.FieldName,
		nullID(c.BaseRevisionID),
		c.LocalRevisionID,
		nullID(c.RemoteRevisionID),
		c.OriginatorUserID,
		c.CreatedAt,
		string(ir.ConflictOpen),
	)
	return backendErr("insert conflict", err)
}

// MarkConflictResolved records the resolution metadata on a conflict.
func (t *Tx) MarkConflictResolved(ctx context.Context, conflictID string, adminUserID, resolvedAt int64, payload string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE Conflicts
		SET Status = ?, ResolvedByAdminUserId = ?, ResolvedAt = ?, ResolutionPayload = ?
		WHERE ConflictId = ?
	`, string(ir.ConflictResolved), adminUserID, resolvedAt, payload, conflictID)
	if err != nil {
		return backendErr("mark conflict resolved", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendErr("mark conflict resolved", err)
	}
	if n == 0 {
		return fmt.Errorf("mark conflict resolved %s: %w", conflictID, ErrNotFound)
	}
	return nil
}

// ReadConflict returns the full conflict record, including resolution
// metadata once resolved.
func (r reader) ReadConflict(ctx context.Context, conflictID string) (ir.Conflict, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM Conflicts WHERE ConflictId = ?`, conflictID)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Conflict{}, fmt.Errorf("read conflict %s: %w", conflictID, ErrNotFound)
	}
	if err != nil {
		return ir.Conflict{}, backendErr("read conflict", err)
	}
	return c, nil
}

// ListOpenConflicts returns open conflicts newest first, optionally limited
// to one originator. Ties on CreatedAt are broken by ConflictId.
func (r reader) ListOpenConflicts(ctx context.Context, originatorUserID *int64) ([]ir.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM Conflicts WHERE Status = ?`
	args := []any{string(ir.ConflictOpen)}
	if originatorUserID != nil {
		query += ` AND OriginatorUserId = ?`
		args = append(args, *originatorUserID)
	}
	query += ` ORDER BY CreatedAt DESC, ConflictId ASC`

	return r.queryConflicts(ctx, query, args...)
}

// ListItemConflicts returns every conflict of an item, open or resolved,
// oldest first.
func (r reader) ListItemConflicts(ctx context.Context, itemID string) ([]ir.Conflict, error) {
	return r.queryConflicts(ctx, `
		SELECT `+conflictColumns+` FROM Conflicts
		WHERE ItemId = ?
		ORDER BY CreatedAt ASC, ConflictId ASC
	`, itemID)
}

func (r reader) queryConflicts(ctx context.Context, query string, args ...any) ([]ir.Conflict, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backendErr("list conflicts", err)
	}
	defer rows.Close()

	conflicts := []ir.Conflict{}
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, backendErr("scan conflict", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate conflicts", err)
	}
	return conflicts, nil
}

func scanConflict(s rowScanner) (ir.Conflict, error) {
	var c ir.Conflict
	var base, remote, payload sql.NullString
	var status string
	var resolvedBy, resolvedAt sql.NullInt64
	err := s.Scan(
		&c.ID,
		&c.ItemID,
		&c.FieldName,
		&base,
		&c.LocalRevisionID,
		&remote,
		&c.OriginatorUserID,
		&c.CreatedAt,
		&status,
		&resolvedBy,
		&resolvedAt,
		&payload,
	)
	if err != nil {
		return ir.Conflict{}, err
	}
	c.BaseRevisionID = base.String
	c.RemoteRevisionID = remote.String
	c.Status = ir.ConflictStatus(status)
	c.ResolutionPayload = payload.String
	if resolvedBy.Valid {
		v := resolvedBy.Int64
		c.ResolvedByAdminUserID = &v
	}
	if resolvedAt.Valid {
		v := resolvedAt.Int64
		c.ResolvedAt = &v
	}
	return c, nil
}
