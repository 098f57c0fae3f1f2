package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vaultrev/internal/ir"
)

// fieldColumns maps item field names to VaultItems columns. The names are
// identical; the map is the allow-list for dynamic column SQL.
var fieldColumns = map[string]string{
	ir.FieldName:    "Name",
	ir.FieldContent: "Content",
	ir.FieldTags:    "Tags",
}

const itemColumns = `ItemId, ParentItemId, Name, Content, Tags, HeadRevision, VersionSeq, CreatedAt, UpdatedAt`

// InsertItem creates an item row. Head state normally starts empty and is
// set by the first recorded revision.
func (t *Tx) InsertItem(ctx context.Context, item ir.Item) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO VaultItems (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		nullID(item.ParentItemID),
		item.Name,
		item.Content,
		item.Tags,
		nullID(item.HeadRevisionID),
		item.VersionSeq,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return backendErr("insert item", err)
}

// LockItem takes the per-item write lock and returns the current head.
// It must run before NextVersionSeq in any revision-writing transaction.
func (t *Tx) LockItem(ctx context.Context, itemID string) (ir.ItemHead, error) {
	lock, read := t.dialect.lockItemSQL()
	if lock != "" {
		res, err := t.tx.ExecContext(ctx, lock, itemID)
		if err != nil {
			return ir.ItemHead{}, backendErr("lock item", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return ir.ItemHead{}, backendErr("lock item", err)
		}
		if n == 0 {
			return ir.ItemHead{}, fmt.Errorf("lock item %s: %w", itemID, ErrNotFound)
		}
	}

	var head sql.NullString
	var seq int64
	err := t.tx.QueryRowContext(ctx, read, itemID).Scan(&head, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ItemHead{}, fmt.Errorf("lock item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return ir.ItemHead{}, backendErr("lock item", err)
	}

	return ir.ItemHead{ItemID: itemID, HeadRevisionID: head.String, VersionSeq: seq}, nil
}

// SetHead advances the item's denormalized head state.
func (t *Tx) SetHead(ctx context.Context, itemID, revisionID string, seq, updatedAt int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE VaultItems SET HeadRevision = ?, VersionSeq = ?, UpdatedAt = ?
		WHERE ItemId = ?
	`, revisionID, seq, updatedAt, itemID)
	if err != nil {
		return backendErr("set head", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendErr("set head", err)
	}
	if n == 0 {
		return fmt.Errorf("set head %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// WriteItemFields overwrites live field values. Every name must be one of
// the item columns.
func (t *Tx) WriteItemFields(ctx context.Context, itemID string, values map[string]string, updatedAt int64) error {
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		if _, ok := fieldColumns[name]; !ok {
			return fmt.Errorf("write item fields: %q: %w", name, ErrUnknownField)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		sets = append(sets, fieldColumns[name]+" = ?")
		args = append(args, values[name])
	}
	sets = append(sets, "UpdatedAt = ?")
	args = append(args, updatedAt, itemID)

	res, err := t.tx.ExecContext(ctx,
		"UPDATE VaultItems SET "+strings.Join(sets, ", ")+" WHERE ItemId = ?", args...)
	if err != nil {
		return backendErr("write item fields", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendErr("write item fields", err)
	}
	if n == 0 {
		return fmt.Errorf("write item fields %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// ReadItem returns one item with its live values and head state.
func (r reader) ReadItem(ctx context.Context, itemID string) (ir.Item, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM VaultItems WHERE ItemId = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Item{}, fmt.Errorf("read item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return ir.Item{}, backendErr("read item", err)
	}
	return item, nil
}

// ListItems returns all items ordered by id.
func (r reader) ListItems(ctx context.Context) ([]ir.Item, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+itemColumns+` FROM VaultItems ORDER BY ItemId ASC`)
	if err != nil {
		return nil, backendErr("list items", err)
	}
	defer rows.Close()

	items := []ir.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, backendErr("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate items", err)
	}
	return items, nil
}

// LiveFieldValue returns the current value of one item field.
func (r reader) LiveFieldValue(ctx context.Context, itemID, field string) (string, error) {
	if _, ok := fieldColumns[field]; !ok {
		return "", fmt.Errorf("live field value: %q: %w", field, ErrUnknownField)
	}
	item, err := r.ReadItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	v, _ := item.Field(field)
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (ir.Item, error) {
	var item ir.Item
	var parent, head sql.NullString
	err := s.Scan(
		&item.ID,
		&parent,
		&item.Name,
		&item.Content,
		&item.Tags,
		&head,
		&item.VersionSeq,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return ir.Item{}, err
	}
	item.ParentItemID = parent.String
	item.HeadRevisionID = head.String
	return item, nil
}
