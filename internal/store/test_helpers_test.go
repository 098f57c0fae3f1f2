package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/vaultrev/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustTx runs fn in a transaction and fails the test on error.
func mustTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	if err := s.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
}

// seedItem inserts an item with no head.
func seedItem(t *testing.T, s *Store, id string) {
	t.Helper()
	mustTx(t, s, func(tx *Tx) error {
		return tx.InsertItem(context.Background(), ir.Item{
			ID:        id,
			Name:      "name-" + id,
			Content:   "content-" + id,
			CreatedAt: 100,
			UpdatedAt: 100,
		})
	})
}

// appendRevision records a revision the way the engine's fast-forward path
// does: revision, fields, version row, optional parent, head.
func appendRevision(t *testing.T, s *Store, itemID, revID, base string, changes map[string]ir.FieldChange) int64 {
	t.Helper()
	ctx := context.Background()
	var seq int64
	mustTx(t, s, func(tx *Tx) error {
		if _, err := tx.LockItem(ctx, itemID); err != nil {
			return err
		}
		if err := tx.InsertRevision(ctx, ir.Revision{
			ID: revID, ItemID: itemID, AuthorUserID: 1, CreatedAt: 200, BaseRevisionID: base, Type: ir.RevisionEdit,
		}); err != nil {
			return err
		}
		if err := tx.InsertRevisionFields(ctx, revID, changes); err != nil {
			return err
		}
		next, err := tx.NextVersionSeq(ctx, itemID)
		if err != nil {
			return err
		}
		seq = next
		if err := tx.InsertItemVersion(ctx, ir.ItemVersion{ItemID: itemID, VersionSeq: next, RevisionID: revID}); err != nil {
			return err
		}
		if base != "" {
			if err := tx.InsertParent(ctx, ir.ParentEdge{RevisionID: revID, ParentRevisionID: base}); err != nil {
				return err
			}
		}
		return tx.SetHead(ctx, itemID, revID, next, 200)
	})
	return seq
}
