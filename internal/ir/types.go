package ir

import (
	"database/sql"
	"time"
)

// RevisionType distinguishes plain edits from synthesized merges.
type RevisionType string

const (
	RevisionEdit  RevisionType = "edit"
	RevisionMerge RevisionType = "merge"
)

// Valid reports whether t is a known revision type.
func (t RevisionType) Valid() bool {
	return t == RevisionEdit || t == RevisionMerge
}

// ConflictStatus is the lifecycle state of a Conflict.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Revision is an immutable commit-like record of changes to one item.
type Revision struct {
	ID             string       `json:"revision_id"`
	ItemID         string       `json:"item_id"`
	AuthorUserID   int64        `json:"author_user_id"`
	CreatedAt      int64        `json:"created_at"`
	BaseRevisionID string       `json:"base_revision_id,omitempty"` // "" = NULL
	Type           RevisionType `json:"revision_type"`
}

// RevisionField is one field changed by a revision.
type RevisionField struct {
	RevisionID string         `json:"revision_id"`
	FieldName  string         `json:"field_name"`
	OldValue   sql.NullString `json:"old_value"`
	NewValue   sql.NullString `json:"new_value"`
}

// FieldChange is the (old, new) pair supplied when recording a revision.
type FieldChange struct {
	Old sql.NullString
	New sql.NullString
}

// Change builds a FieldChange from two non-null values.
func Change(oldValue, newValue string) FieldChange {
	return FieldChange{Old: Text(oldValue), New: Text(newValue)}
}

// Text wraps s as a non-null nullable string.
func Text(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// NullText returns the SQL NULL string.
func NullText() sql.NullString {
	return sql.NullString{}
}

// ItemHead is the denormalized head state stored on the item record.
type ItemHead struct {
	ItemID         string `json:"item_id"`
	HeadRevisionID string `json:"head_revision_id,omitempty"`
	VersionSeq     int64  `json:"version_seq"`
}

// Item is a document with its live field values and head state.
type Item struct {
	ID             string `json:"item_id"`
	ParentItemID   string `json:"parent_item_id,omitempty"`
	Name           string `json:"name"`
	Content        string `json:"content"`
	Tags           string `json:"tags"` // newline-joined, see JoinTags
	HeadRevisionID string `json:"head_revision_id,omitempty"`
	VersionSeq     int64  `json:"version_seq"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Field returns the live value of a known field.
// The second return is false for names outside KnownFields.
func (i *Item) Field(name string) (string, bool) {
	switch name {
	case FieldName:
		return i.Name, true
	case FieldContent:
		return i.Content, true
	case FieldTags:
		return i.Tags, true
	}
	return "", false
}

// Fields returns all live field values keyed by field name.
func (i *Item) Fields() map[string]string {
	return map[string]string{
		FieldName:    i.Name,
		FieldContent: i.Content,
		FieldTags:    i.Tags,
	}
}

// Head returns the item's head state.
func (i *Item) Head() ItemHead {
	return ItemHead{ItemID: i.ID, HeadRevisionID: i.HeadRevisionID, VersionSeq: i.VersionSeq}
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (i *Item) UpdatedAtTime() time.Time {
	return time.Unix(i.UpdatedAt, 0)
}

// Conflict is a durable, field-scoped record of an unreconciled divergence.
type Conflict struct {
	ID                    string         `json:"conflict_id"`
	ItemID                string         `json:"item_id"`
	FieldName             string         `json:"field_name"`
	BaseRevisionID        string         `json:"base_revision_id,omitempty"`
	LocalRevisionID       string         `json:"local_revision_id"`
	RemoteRevisionID      string         `json:"remote_revision_id,omitempty"`
	OriginatorUserID      int64          `json:"originator_user_id"`
	CreatedAt             int64          `json:"created_at"`
	Status                ConflictStatus `json:"status"`
	ResolvedByAdminUserID *int64         `json:"resolved_by_admin_user_id,omitempty"`
	ResolvedAt            *int64         `json:"resolved_at,omitempty"`
	ResolutionPayload     string         `json:"resolution_payload,omitempty"`
}

// IsOpen reports whether the conflict still awaits resolution.
func (c *Conflict) IsOpen() bool {
	return c.Status == ConflictOpen
}

// CreatedAtTime returns CreatedAt as time.Time.
func (c *Conflict) CreatedAtTime() time.Time {
	return time.Unix(c.CreatedAt, 0)
}
