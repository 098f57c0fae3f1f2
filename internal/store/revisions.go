package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/vaultrev/internal/ir"
)

// InsertRevision appends an immutable revision row.
func (t *Tx) InsertRevision(ctx context.Context, rev ir.Revision) error {
	if !rev.Type.Valid() {
		return fmt.Errorf("insert revision: invalid revision type %q", rev.Type)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO Revisions (RevisionId, ItemId, AuthorUserId, CreatedAt, BaseRevisionId, RevisionType)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rev.ID,
		rev.ItemID,
		rev.AuthorUserID,
		rev.CreatedAt,
		nullID(rev.BaseRevisionID),
		string(rev.Type),
	)
	return backendErr("insert revision", err)
}

// InsertRevisionFields writes one RevisionFields row per change, in field
// name order.
func (t *Tx) InsertRevisionFields(ctx context.Context, revisionID string, changes map[string]ir.FieldChange) error {
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := changes[name]
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO RevisionFields (RevisionId, FieldName, OldValue, NewValue)
			VALUES (?, ?, ?, ?)
		`, revisionID, name, c.Old, c.New)
		if err != nil {
			return backendErr("insert revision field", err)
		}
	}
	return nil
}

const revisionColumns = `RevisionId, ItemId, AuthorUserId, CreatedAt, BaseRevisionId, RevisionType`

// ReadRevision returns one revision.
func (r reader) ReadRevision(ctx context.Context, revisionID string) (ir.Revision, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM Revisions WHERE RevisionId = ?`, revisionID)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Revision{}, fmt.Errorf("read revision %s: %w", revisionID, ErrNotFound)
	}
	if err != nil {
		return ir.Revision{}, backendErr("read revision", err)
	}
	return rev, nil
}

// ListRevisions returns every revision of an item, oldest first.
func (r reader) ListRevisions(ctx context.Context, itemID string) ([]ir.Revision, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+revisionColumns+` FROM Revisions
		WHERE ItemId = ?
		ORDER BY CreatedAt ASC, RevisionId ASC
	`, itemID)
	if err != nil {
		return nil, backendErr("list revisions", err)
	}
	defer rows.Close()

	revs := []ir.Revision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, backendErr("scan revision", err)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate revisions", err)
	}
	return revs, nil
}

// ReadRevisionFields returns the fields a revision changed, ordered by name.
func (r reader) ReadRevisionFields(ctx context.Context, revisionID string) ([]ir.RevisionField, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT RevisionId, FieldName, OldValue, NewValue
		FROM RevisionFields
		WHERE RevisionId = ?
		ORDER BY FieldName ASC
	`, revisionID)
	if err != nil {
		return nil, backendErr("read revision fields", err)
	}
	defer rows.Close()

	fields := []ir.RevisionField{}
	for rows.Next() {
		var f ir.RevisionField
		if err := rows.Scan(&f.RevisionID, &f.FieldName, &f.OldValue, &f.NewValue); err != nil {
			return nil, backendErr("scan revision field", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate revision fields", err)
	}
	return fields, nil
}

// ReadRevisionField returns the row for one (revision, field) pair, or
// ErrNotFound when the revision did not touch the field.
func (r reader) ReadRevisionField(ctx context.Context, revisionID, field string) (ir.RevisionField, error) {
	f := ir.RevisionField{RevisionID: revisionID, FieldName: field}
	err := r.q.QueryRowContext(ctx, `
		SELECT OldValue, NewValue FROM RevisionFields
		WHERE RevisionId = ? AND FieldName = ?
	`, revisionID, field).Scan(&f.OldValue, &f.NewValue)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RevisionField{}, fmt.Errorf("read revision field %s/%s: %w", revisionID, field, ErrNotFound)
	}
	if err != nil {
		return ir.RevisionField{}, backendErr("read revision field", err)
	}
	return f, nil
}

func scanRevision(s rowScanner) (ir.Revision, error) {
	var rev ir.Revision
	var base sql.NullString
	var typ string
	if err := s.Scan(&rev.ID, &rev.ItemID, &rev.AuthorUserID, &rev.CreatedAt, &base, &typ); err != nil {
		return ir.Revision{}, err
	}
	rev.BaseRevisionID = base.String
	rev.Type = ir.RevisionType(typ)
	return rev, nil
}
