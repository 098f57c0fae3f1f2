package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/vaultrev/internal/ir"
)

func TestRevisionRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "i1")

	appendRevision(t, s, "i1", "r1", "", map[string]ir.FieldChange{
		ir.FieldName:    ir.Change("old", "new"),
		ir.FieldContent: {Old: ir.NullText(), New: ir.Text("body")},
	})

	rev, err := s.ReadRevision(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadRevision() failed: %v", err)
	}
	if rev.ItemID != "i1" || rev.Type != ir.RevisionEdit || rev.BaseRevisionID != "" {
		t.Errorf("revision = %+v", rev)
	}

	fields, err := s.ReadRevisionFields(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadRevisionFields() failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	// Ordered by name: Content < Name.
	if fields[0].FieldName != ir.FieldContent || fields[0].OldValue.Valid {
		t.Errorf("fields[0] = %+v, want Content with NULL old value", fields[0])
	}
	if fields[1].FieldName != ir.FieldName || fields[1].NewValue.String != "new" {
		t.Errorf("fields[1] = %+v", fields[1])
	}

	f, err := s.ReadRevisionField(ctx, "r1", ir.FieldName)
	if err != nil || f.OldValue.String != "old" {
		t.Errorf("ReadRevisionField() = %+v, %v", f, err)
	}
	if _, err := s.ReadRevisionField(ctx, "r1", ir.FieldTags); !errors.Is(err, ErrNotFound) {
		t.Errorf("untouched field: err = %v, want ErrNotFound", err)
	}
}

func TestReadRevisionMissing(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.ReadRevision(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadRevision() error = %v, want ErrNotFound", err)
	}
}

func TestInsertRevisionRejectsInvalidType(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "i1")

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertRevision(ctx, ir.Revision{ID: "r1", ItemID: "i1", Type: "rebase"})
	})
	if err == nil {
		t.Fatal("expected error for invalid revision type")
	}
}

func TestVersionSeqMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "i1")

	base := ""
	for i, id := range []string{"r1", "r2", "r3"} {
		seq := appendRevision(t, s, "i1", id, base, map[string]ir.FieldChange{ir.FieldName: ir.Change("", id)})
		if seq != int64(i+1) {
			t.Errorf("revision %s got seq %d, want %d", id, seq, i+1)
		}
		base = id
	}

	versions, err := s.ReadItemVersions(ctx, "i1")
	if err != nil {
		t.Fatalf("ReadItemVersions() failed: %v", err)
	}
	for i, v := range versions {
		if v.VersionSeq != int64(i+1) {
			t.Errorf("versions[%d].VersionSeq = %d", i, v.VersionSeq)
		}
	}

	parents, err := s.ReadParents(ctx, "r3")
	if err != nil {
		t.Fatalf("ReadParents() failed: %v", err)
	}
	if len(parents) != 1 || parents[0].ParentRevisionID != "r2" {
		t.Errorf("parents of r3 = %v", parents)
	}

	all, err := s.ReadItemParents(ctx, "i1")
	if err != nil {
		t.Fatalf("ReadItemParents() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 parent edges, got %d", len(all))
	}
}

func TestDuplicateVersionSeqRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "i1")
	appendRevision(t, s, "i1", "r1", "", map[string]ir.FieldChange{ir.FieldName: ir.Change("", "a")})

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertRevision(ctx, ir.Revision{ID: "r2", ItemID: "i1", Type: ir.RevisionEdit}); err != nil {
			return err
		}
		return tx.InsertItemVersion(ctx, ir.ItemVersion{ItemID: "i1", VersionSeq: 1, RevisionID: "r2"})
	})
	if err == nil {
		t.Fatal("expected primary key violation for duplicate VersionSeq")
	}
}

func TestInsertParentRejectsSelfLoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "i1")
	appendRevision(t, s, "i1", "r1", "", map[string]ir.FieldChange{ir.FieldName: ir.Change("", "a")})

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertParent(ctx, ir.ParentEdge{RevisionID: "r1", ParentRevisionID: "r1"})
	})
	if err == nil {
		t.Fatal("expected self-loop rejection")
	}
}
