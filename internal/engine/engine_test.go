package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
	"github.com/roach88/vaultrev/internal/testutil"
)

func setupTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := []Option{
		WithIDGenerator(testutil.NewSequentialIDs("id")),
		WithClock(testutil.NewDeterministicClock(0)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(st, append(base, opts...)...)
}

func createItem(t *testing.T, e *Engine, values map[string]string) RecordResult {
	t.Helper()
	res, err := e.CreateItem(context.Background(), CreateItemRequest{AuthorUserID: 1, Values: values})
	require.NoError(t, err)
	return res
}

func edit(t *testing.T, e *Engine, itemID, base string, author int64, changes map[string]ir.FieldChange) RecordResult {
	t.Helper()
	res, err := e.RecordRevision(context.Background(), RecordRequest{
		ItemID:         itemID,
		AuthorUserID:   author,
		Changes:        changes,
		BaseRevisionID: base,
	})
	require.NoError(t, err)
	return res
}

func change(old, new string) ir.FieldChange {
	return ir.Change(old, new)
}

func TestCreateItem(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()

	res := createItem(t, e, map[string]string{ir.FieldName: "x", ir.FieldContent: "body"})
	assert.True(t, res.FastForward)
	assert.Equal(t, int64(1), res.VersionSeq)
	assert.Equal(t, res.RevisionID, res.HeadRevisionID())
	assert.Empty(t, res.ConflictIDs)

	item, err := e.GetItem(ctx, res.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "x", item.Name)
	assert.Equal(t, "body", item.Content)
	assert.Equal(t, "", item.Tags)
	assert.Equal(t, res.RevisionID, item.HeadRevisionID)
	assert.Equal(t, int64(1), item.VersionSeq)

	fields, err := e.Store().ReadRevisionFields(ctx, res.RevisionID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	for _, f := range fields {
		assert.False(t, f.OldValue.Valid, "field %s should have NULL old value", f.FieldName)
	}
}

func TestCreateItem_ExplicitID(t *testing.T) {
	e := setupTestEngine(t)

	res, err := e.CreateItem(context.Background(), CreateItemRequest{
		ItemID:       "item-1",
		AuthorUserID: 7,
		Values:       map[string]string{ir.FieldName: "n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "item-1", res.ItemID)
}

func TestCreateItem_UnknownField(t *testing.T) {
	e := setupTestEngine(t)

	_, err := e.CreateItem(context.Background(), CreateItemRequest{
		Values: map[string]string{"Password": "hunter2"},
	})
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))

	items, err := e.ListItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecordRevision_FastForward(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x"})

	res := edit(t, e, created.ItemID, created.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldName: change("x", "x2"),
	})
	assert.True(t, res.FastForward)
	assert.Equal(t, int64(2), res.VersionSeq)
	assert.Empty(t, res.ConflictIDs)
	assert.Empty(t, res.MergeRevisionID)

	item, err := e.GetItem(ctx, created.ItemID)
	require.NoError(t, err)
	assert.Equal(t, res.RevisionID, item.HeadRevisionID)
	assert.Equal(t, int64(2), item.VersionSeq)
	assert.Equal(t, "x2", item.Name)

	conflicts, err := e.ListItemConflicts(ctx, created.ItemID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	parents, err := e.Store().ReadParents(ctx, res.RevisionID)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, created.RevisionID, parents[0].ParentRevisionID)
}

func TestRecordRevision_EmptyBaseFastForwards(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x"})

	res := edit(t, e, created.ItemID, "", 2, map[string]ir.FieldChange{
		ir.FieldContent: change("", "c"),
	})
	assert.True(t, res.FastForward)

	parents, err := e.Store().ReadParents(ctx, res.RevisionID)
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestRecordRevision_UnknownItem(t *testing.T) {
	e := setupTestEngine(t)

	_, err := e.RecordRevision(context.Background(), RecordRequest{
		ItemID:  "missing",
		Changes: map[string]ir.FieldChange{ir.FieldName: change("", "x")},
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRecordRevision_InvalidBase(t *testing.T) {
	e := setupTestEngine(t)
	a := createItem(t, e, map[string]string{ir.FieldName: "a"})
	b := createItem(t, e, map[string]string{ir.FieldName: "b"})

	tests := []struct {
		name string
		base string
	}{
		{"nonexistent revision", "no-such-revision"},
		{"revision of another item", b.RevisionID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RecordRevision(context.Background(), RecordRequest{
				ItemID:         a.ItemID,
				Changes:        map[string]ir.FieldChange{ir.FieldName: change("a", "a2")},
				BaseRevisionID: tt.base,
			})
			require.Error(t, err)
			assert.True(t, IsInvalidBase(err))
		})
	}

	// Rejected writes leave nothing behind.
	revs, err := e.Store().ListRevisions(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Len(t, revs, 1)
}

func TestRecordRevision_UnknownField(t *testing.T) {
	e := setupTestEngine(t)
	created := createItem(t, e, map[string]string{ir.FieldName: "x"})

	_, err := e.RecordRevision(context.Background(), RecordRequest{
		ItemID:         created.ItemID,
		Changes:        map[string]ir.FieldChange{"Owner": change("", "me")},
		BaseRevisionID: created.RevisionID,
	})
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
}

func TestRecordRevision_RejectsMergeType(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x"})

	for _, typ := range []ir.RevisionType{ir.RevisionMerge, "squash"} {
		_, err := e.RecordRevision(ctx, RecordRequest{
			ItemID:         created.ItemID,
			Type:           typ,
			Changes:        map[string]ir.FieldChange{ir.FieldName: change("x", "x2")},
			BaseRevisionID: created.RevisionID,
		})
		require.Error(t, err)
		assert.True(t, IsInvalidRevisionType(err), "type %q: %v", typ, err)
	}

	res := edit(t, e, created.ItemID, created.RevisionID, 1, map[string]ir.FieldChange{
		ir.FieldName: change("x", "x2"),
	})
	rev, err := e.Store().ReadRevision(ctx, res.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, ir.RevisionEdit, rev.Type)

	report, err := e.Verify(ctx, created.ItemID)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
	assert.Equal(t, 2, report.Revisions)
}

func TestRecordRevision_VersionSeqMonotonic(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{
		ir.FieldName:    "x",
		ir.FieldContent: "one\ntwo\nthree\nfour\n",
	})

	// Fast-forward, clean divergence, conflicting divergence, resolution.
	ff := edit(t, e, created.ItemID, created.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldContent: change("one\ntwo\nthree\nfour\n", "one\ntwo\nthree\nFOUR\n"),
	})
	clean := edit(t, e, created.ItemID, created.RevisionID, 3, map[string]ir.FieldChange{
		ir.FieldContent: change("one\ntwo\nthree\nfour\n", "ONE\ntwo\nthree\nfour\n"),
	})
	require.NotEmpty(t, clean.MergeRevisionID)

	named := edit(t, e, created.ItemID, clean.MergeRevisionID, 2, map[string]ir.FieldChange{
		ir.FieldName: change("x", "y"),
	})
	remote := edit(t, e, created.ItemID, named.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldName: change("y", "y_remote"),
	})
	local := edit(t, e, created.ItemID, named.RevisionID, 3, map[string]ir.FieldChange{
		ir.FieldName: change("y", "y_local"),
	})
	require.Len(t, local.ConflictIDs, 1)

	_, err := e.AdminResolveConflict(ctx, ResolveRequest{
		ConflictID:          local.ConflictIDs[0],
		AdminUserID:         99,
		MergedValues:        map[string]string{ir.FieldName: "x_merged"},
		CreateMergeRevision: true,
	})
	require.NoError(t, err)

	versions, err := e.Store().ReadItemVersions(ctx, created.ItemID)
	require.NoError(t, err)
	// create, ff, clean, merge, named, remote, local, resolution
	require.Len(t, versions, 8)
	for i, v := range versions {
		assert.Equal(t, int64(i+1), v.VersionSeq)
	}
	assert.Equal(t, ff.RevisionID, versions[1].RevisionID)
	assert.Equal(t, remote.RevisionID, versions[5].RevisionID)

	report, err := e.Verify(ctx, created.ItemID)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
}
