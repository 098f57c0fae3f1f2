package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultrev/internal/ir"
)

func TestGetFieldValue(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x", ir.FieldContent: "c1"})
	second := edit(t, e, created.ItemID, created.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldName: change("x", "x2"),
	})
	edit(t, e, created.ItemID, second.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldContent: change("c1", "c2"),
	})

	tests := []struct {
		name     string
		revision string
		field    string
		expected string
	}{
		{"recorded value", created.RevisionID, ir.FieldName, "x"},
		{"recorded by later revision", second.RevisionID, ir.FieldName, "x2"},
		{"untouched field falls back to live value", second.RevisionID, ir.FieldContent, "c2"},
		{"empty revision reads live value", "", ir.FieldName, "x2"},
		{"unknown revision reads live value", "missing", ir.FieldContent, "c2"},
		{"never-set field", created.RevisionID, ir.FieldTags, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.GetFieldValue(ctx, tt.revision, created.ItemID, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGetFieldValue_Errors(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x"})

	_, err := e.GetFieldValue(ctx, created.RevisionID, created.ItemID, "Color")
	assert.True(t, IsUnknownField(err))

	_, err = e.GetFieldValue(ctx, "", "missing-item", ir.FieldName)
	assert.True(t, IsNotFound(err))
}

func TestListOpenConflicts_FilterAndOrder(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()

	var ids []string
	for _, author := range []int64{3, 4, 3} {
		created := createItem(t, e, map[string]string{ir.FieldName: "x"})
		edit(t, e, created.ItemID, created.RevisionID, 2, map[string]ir.FieldChange{
			ir.FieldName: change("x", "remote"),
		})
		local := edit(t, e, created.ItemID, created.RevisionID, author, map[string]ir.FieldChange{
			ir.FieldName: change("x", "local"),
		})
		require.Len(t, local.ConflictIDs, 1)
		ids = append(ids, local.ConflictIDs[0])
	}

	all, err := e.ListOpenConflicts(ctx, ConflictFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[1], all[1].ID)
	assert.Equal(t, ids[0], all[2].ID)

	originator := int64(3)
	mine, err := e.ListOpenConflicts(ctx, ConflictFilter{OriginatorUserID: &originator})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, ids[2], mine[0].ID)
	assert.Equal(t, ids[0], mine[1].ID)

	_, err = e.GetConflictDetail(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestHistory(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()
	created := createItem(t, e, map[string]string{ir.FieldName: "x", ir.FieldContent: "y"})
	remote := edit(t, e, created.ItemID, created.RevisionID, 2, map[string]ir.FieldChange{
		ir.FieldContent: change("y", "y2"),
	})
	local := edit(t, e, created.ItemID, created.RevisionID, 3, map[string]ir.FieldChange{
		ir.FieldName: change("x", "x2"),
	})

	history, err := e.History(ctx, created.ItemID)
	require.NoError(t, err)
	require.Len(t, history, 4)

	expected := []string{created.RevisionID, remote.RevisionID, local.RevisionID, local.MergeRevisionID}
	for i, h := range history {
		assert.Equal(t, int64(i+1), h.Version.VersionSeq)
		assert.Equal(t, expected[i], h.Revision.ID)
		assert.Equal(t, i == 3, h.Head, "entry %d", i)
	}
	assert.Empty(t, history[0].Parents)
	assert.Equal(t, []string{created.RevisionID}, history[1].Parents)
	assert.Len(t, history[3].Parents, 2)
	assert.Equal(t, ir.RevisionMerge, history[3].Revision.Type)

	_, err = e.History(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestVerifyAll(t *testing.T) {
	e := setupTestEngine(t)
	createItem(t, e, map[string]string{ir.FieldName: "a"})
	createItem(t, e, map[string]string{ir.FieldName: "b"})

	reports, err := e.VerifyAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.OK(), "%s: %v", r.ItemID, r.Violations)
	}
}
