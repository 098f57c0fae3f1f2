package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/syncer"
)

func TestInit(t *testing.T) {
	db := tempDB(t)
	out, err := execute(t, "init", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized sqlite3 database at "+db)
}

func TestItemCreateShowList(t *testing.T) {
	db := tempDB(t)

	res := executeJSON[engine.RecordResult](t, "item", "create", "--db", db,
		"--id", "note-1", "--name", "db password", "--content", `line one\nline two`,
		"--tag", "prod", "--tag", "infra", "--author", "7")
	assert.Equal(t, "note-1", res.ItemID)
	assert.Equal(t, int64(1), res.VersionSeq)
	assert.True(t, res.FastForward)

	detail := executeJSON[ItemDetail](t, "item", "show", "note-1", "--db", db)
	assert.Equal(t, "db password", detail.Item.Name)
	assert.Equal(t, "line one\nline two", detail.Item.Content)
	assert.Equal(t, []string{"prod", "infra"}, ir.SplitTags(detail.Item.Tags))
	assert.Equal(t, res.RevisionID, detail.Item.HeadRevisionID)
	assert.Empty(t, detail.OpenConflicts)

	items := executeJSON[[]ir.Item](t, "item", "list", "--db", db)
	require.Len(t, items, 1)
	assert.Equal(t, "note-1", items[0].ID)

	out, err := execute(t, "item", "show", "note-1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `Content: line one\nline two`)
	assert.Contains(t, out, "Tags:    [prod infra]")
}

func TestItemShowUnknown(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "item", "show", "ghost", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "[NOT_FOUND]")
}

// conflictFixture creates an item whose Name has diverged and returns the
// database path, the base revision and the open conflict id.
func conflictFixture(t *testing.T) (db, base, conflictID string) {
	t.Helper()
	db = tempDB(t)

	created := executeJSON[engine.RecordResult](t, "item", "create", "--db", db, "--id", "note", "--name", "x")
	base = created.RevisionID

	ff := executeJSON[engine.RecordResult](t, "edit", "note", "--db", db, "--field", "Name=remote", "--base", "head", "--author", "2")
	require.True(t, ff.FastForward)

	diverged := executeJSON[engine.RecordResult](t, "edit", "note", "--db", db, "--field", "Name=local", "--base", base, "--author", "3")
	require.False(t, diverged.FastForward)
	require.Empty(t, diverged.MergeRevisionID)
	require.Len(t, diverged.ConflictIDs, 1)
	return db, base, diverged.ConflictIDs[0]
}

func TestEditConflictAndResolve(t *testing.T) {
	db, _, conflictID := conflictFixture(t)

	conflicts := executeJSON[[]ir.Conflict](t, "conflicts", "list", "--db", db)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflictID, conflicts[0].ID)
	assert.Equal(t, ir.FieldName, conflicts[0].FieldName)

	mine := executeJSON[[]ir.Conflict](t, "conflicts", "list", "--db", db, "--originator", "3")
	assert.Len(t, mine, 1)
	others := executeJSON[[]ir.Conflict](t, "conflicts", "list", "--db", db, "--originator", "2")
	assert.Empty(t, others)

	detail := executeJSON[ConflictDetail](t, "conflicts", "show", conflictID, "--db", db)
	assert.Equal(t, "x", detail.BaseValue)
	assert.Equal(t, "local", detail.LocalValue)
	assert.Equal(t, "remote", detail.RemoteValue)

	res := executeJSON[ResolveResult](t, "conflicts", "resolve", conflictID, "--db", db,
		"--admin", "99", "--set", "Name=final", "--summary", "picked final")
	assert.True(t, res.Resolved)
	assert.Equal(t, int64(4), res.VersionSeq)

	value := executeJSON[FieldValue](t, "field", "note", "Name", "--db", db)
	assert.Equal(t, "final", value.Value)

	history := executeJSON[[]engine.HistoryEntry](t, "history", "note", "--db", db)
	require.Len(t, history, 4)
	last := history[3]
	assert.True(t, last.Head)
	assert.Equal(t, ir.RevisionMerge, last.Revision.Type)
	assert.Len(t, last.Parents, 2)

	out, err := execute(t, "conflicts", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No open conflicts.")

	out, err = execute(t, "verify", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestResolveWithoutRevision(t *testing.T) {
	db, _, conflictID := conflictFixture(t)

	res := executeJSON[ResolveResult](t, "conflicts", "resolve", conflictID, "--db", db,
		"--admin", "99", "--set", "Name=final", "--no-revision")
	assert.True(t, res.Resolved)
	assert.Equal(t, int64(3), res.VersionSeq)

	value := executeJSON[FieldValue](t, "field", "note", "Name", "--db", db)
	assert.Equal(t, "final", value.Value)
}

func TestResolveInteractive(t *testing.T) {
	db, _, conflictID := conflictFixture(t)

	orig := promptResolution
	t.Cleanup(func() { promptResolution = orig })
	promptResolution = func(d ConflictDetail) (string, string, error) {
		return d.LocalValue, "took local", nil
	}

	res := executeJSON[ResolveResult](t, "conflicts", "resolve", conflictID, "--db", db, "--admin", "1", "--interactive")
	assert.True(t, res.Resolved)

	detail := executeJSON[ConflictDetail](t, "conflicts", "show", conflictID, "--db", db)
	assert.Equal(t, ir.ConflictResolved, detail.Conflict.Status)
	assert.Equal(t, "took local", detail.Conflict.ResolutionPayload)

	value := executeJSON[FieldValue](t, "field", "note", "Name", "--db", db)
	assert.Equal(t, "local", value.Value)
}

func TestResolveRequiresValues(t *testing.T) {
	db, _, conflictID := conflictFixture(t)
	_, err := execute(t, "conflicts", "resolve", conflictID, "--db", db, "--admin", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to resolve with")
}

func TestFieldAtRevision(t *testing.T) {
	db, base, _ := conflictFixture(t)

	atBase := executeJSON[FieldValue](t, "field", "note", "Name", "--db", db, "--rev", base)
	assert.Equal(t, "x", atBase.Value)

	untouched := executeJSON[FieldValue](t, "field", "note", "Content", "--db", db, "--rev", base)
	assert.Equal(t, "", untouched.Value)

	_, err := execute(t, "field", "note", "Title", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[UNKNOWN_FIELD]")
}

func TestEditErrors(t *testing.T) {
	db := tempDB(t)
	executeJSON[engine.RecordResult](t, "item", "create", "--db", db, "--id", "a", "--name", "a")
	other := executeJSON[engine.RecordResult](t, "item", "create", "--db", db, "--id", "b", "--name", "b")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown field", []string{"--field", "Title=x"}, `unknown field "Title"`},
		{"malformed assignment", []string{"--field", "Name"}, "expected Field=value"},
		{"duplicate field", []string{"--field", "Name=x", "--field", "Name=y"}, "assigned twice"},
		{"foreign base", []string{"--field", "Name=x", "--base", other.RevisionID}, "[INVALID_BASE]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"edit", "a", "--db", db}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "local.db")
	remote := filepath.Join(dir, "remote.db")

	executeJSON[engine.RecordResult](t, "item", "create", "--db", local, "--id", "note", "--name", "x")

	report := executeJSON[syncer.Report](t, "sync", "--db", local, "--remote-db", remote, "--author", "5")
	assert.Equal(t, []string{"note"}, report.Created)
	assert.Empty(t, report.Failed)

	items := executeJSON[[]ir.Item](t, "item", "list", "--db", remote)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].Name)

	executeJSON[engine.RecordResult](t, "edit", "note", "--db", local, "--field", "Name=y", "--base", "head")
	report = executeJSON[syncer.Report](t, "sync", "--db", local, "--remote-db", remote)
	assert.Equal(t, []string{"note"}, report.Uploaded)

	value := executeJSON[FieldValue](t, "field", "note", "Name", "--db", remote)
	assert.Equal(t, "y", value.Value)
}

func TestSyncRequiresRemote(t *testing.T) {
	_, err := execute(t, "sync", "--db", tempDB(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no remote configured")
}
